// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network modules of born-vision.
//
// # Overview
//
// The centerpiece is the ConvNeXt block:
//
//	x ─┬─ DepthwiseSeparableConv ─ LayerNorm2D ─ 1×1 expand ─ GELU ─ 1×1 reduce ─ DropPath ─┐
//	   └───────────────────────────────────────────────────────────────────────────────(+)── out
//
// together with the layers it is built from and a few more primitives
// (Conv2D, Linear, BatchNorm2D, GlobalAvgPool2D, Sequential).
//
// # Basic Usage
//
//	backend := cpu.New()
//	block, err := nn.NewConvNeXtBlock(nn.DefaultBlockConfig(16), backend, rand.New(rand.NewSource(1)))
//	if err != nil {
//	    return err
//	}
//	x := tensor.Randn[float32](tensor.Shape{8, 16, 32, 32}, rng, backend)
//	y := block.Forward(nn.EvalPass(), x) // (8, 16, 32, 32)
//
// # Modes and randomness
//
// Every Forward call receives an nn.Pass. EvalPass disables stochastic
// layers; TrainPass(rng) enables DropPath and draws its masks from rng.
// Modules never read a global random source and never modify their
// parameters during Forward.
//
// # Parameters
//
// Parameters carry names qualified by their position in the module tree
// ("dwconv.depthwise.weight", "norm.scale", ...). StateDict and
// LoadStateDict exchange them by name; the checkpoint format of the
// convnext command builds on these names.
package nn

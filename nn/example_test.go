package nn_test

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/backend/cpu"
	"github.com/born-ml/vision/nn"
	"github.com/born-ml/vision/tensor"
)

func ExampleNewConvNeXtBlock() {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	block, err := nn.NewConvNeXtBlock(nn.DefaultBlockConfig(16), backend, rng)
	if err != nil {
		panic(err)
	}
	x := tensor.Randn[float32](tensor.Shape{8, 16, 32, 32}, rng, backend)

	fmt.Println(block.Forward(nn.EvalPass(), x).Shape())
	fmt.Println(nn.CountParameters[*cpu.Backend](block))
	// Output:
	// (8, 16, 32, 32)
	// 3232
}

func ExampleNewDropPath() {
	backend := cpu.New()
	dp, err := nn.NewDropPath(0.5, backend)
	if err != nil {
		panic(err)
	}
	x := tensor.Ones[float32](tensor.Shape{6, 2}, backend)
	y := dp.Forward(nn.TrainPass(rand.New(rand.NewSource(3))), x)

	// Every sample is either dropped or scaled by 1/(1-p).
	for i := 0; i < 6; i++ {
		if v := y.At(i, 0); v != 0 && v != 2 {
			fmt.Println("unexpected", v)
		}
	}
	fmt.Println(dp.Forward(nn.EvalPass(), x) == x)
	// Output:
	// true
}

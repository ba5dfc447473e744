package module

type MathAPI struct{}

func (MathAPI) Add(a, b int) int      { return a + b }
func (MathAPI) Multiply(a, b int) int { return a * b }

var Math = MathAPI{}

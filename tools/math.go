// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"context"
	"math"
	"strings"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Calculation is the result of the calculator tool.
type Calculation struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

func calculatorTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("calculator").
		Describe("Evaluate an arithmetic expression with + - * / % ^ and parentheses.").
		Param(ak.Param{Name: "expression", Type: ak.TypeString, Required: true, Description: "Expression such as (2 + 3) * 4"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			expr := strings.TrimSpace(args.String("expression"))
			v, err := evaluate(expr)
			if err != nil {
				return nil, fail("cannot evaluate %q: %v", expr, err)
			}
			return Calculation{Expression: expr, Result: v}, nil
		}).
		Build()
}

type advancedMathArgs struct {
	Operation string   `json:"operation" jsonschema:"description=Operation to apply,required,enum=sqrt|power|log|sin|cos"`
	Value     float64  `json:"value" jsonschema:"description=Operand (radians for sin and cos),required"`
	Exponent  *float64 `json:"exponent" jsonschema:"description=Exponent for power"`
}

func advancedMathTool() (*ak.Tool, error) {
	return ak.NewTypedTool("advanced_math",
		"Apply sqrt, power, natural log, sin or cos to a number.",
		func(_ context.Context, a advancedMathArgs) (any, error) {
			var r float64
			switch a.Operation {
			case "sqrt":
				if a.Value < 0 {
					return nil, fail("square root of a negative number")
				}
				r = math.Sqrt(a.Value)
			case "power":
				if a.Exponent == nil {
					return nil, fail("power requires an exponent")
				}
				r = math.Pow(a.Value, *a.Exponent)
			case "log":
				if a.Value <= 0 {
					return nil, fail("logarithm needs a positive number")
				}
				r = math.Log(a.Value)
			case "sin":
				r = math.Sin(a.Value)
			case "cos":
				r = math.Cos(a.Value)
			}
			if math.IsInf(r, 0) || math.IsNaN(r) {
				return nil, fail("result is not a finite number")
			}
			return map[string]any{"operation": a.Operation, "value": a.Value, "result": r}, nil
		})
}

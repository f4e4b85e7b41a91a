package expression

import "go.uber.org/fx"

var Module = fx.Module("expression.evaluator",
	fx.Provide(NewEvaluator),
)

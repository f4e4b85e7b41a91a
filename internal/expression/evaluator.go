// Package expression evaluates dynamic and custom charge expressions with govaluate.
//
// govaluate computes in float64: decimal parameters are converted on the way in, and
// numeric results are cut to 15 significant digits on the way out, so binary noise such
// as 0.1+0.2 = 0.30000000000000004 never reaches a fee. Amounts needing more than 15
// significant digits are outside what an expression can price exactly.
package expression

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/casbin/govaluate"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/chargecore/internal/cache"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	compiledTTL  = 30 * time.Minute
	compiledSize = 1024
)

var (
	ErrInvalidExpression = errors.New("invalid_expression")
	ErrEvaluationFailed  = errors.New("expression_evaluation_failed")
	ErrNonNumericResult  = errors.New("expression_non_numeric_result")
)

type EvaluatorParam struct {
	fx.In

	Log *zap.Logger
}

type Evaluator struct {
	log      *zap.Logger
	compiled cache.Cache[string, *govaluate.EvaluableExpression]
}

func NewEvaluator(p EvaluatorParam) pricingdomain.Evaluator {
	return &Evaluator{
		log:      p.Log.Named("expression.evaluator"),
		compiled: cache.NewTTLCache[string, *govaluate.EvaluableExpression](compiledSize, compiledTTL),
	}
}

func (e *Evaluator) Evaluate(expression string, params map[string]any) (decimal.Decimal, error) {
	compiled, err := e.compile(expression)
	if err != nil {
		return decimal.Zero, err
	}

	result, err := compiled.Evaluate(normalizeParams(params))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrEvaluationFailed, err)
	}
	return toDecimal(result)
}

func (e *Evaluator) compile(expression string) (*govaluate.EvaluableExpression, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	if compiled, ok := e.compiled.Get(expression); ok {
		return compiled, nil
	}

	compiled, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		e.log.Warn("expression rejected", zap.String("expression", expression), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, err)
	}
	e.compiled.Set(expression, compiled)
	return compiled, nil
}

// normalizeParams converts numeric values to float64, the only number type govaluate operates on.
func normalizeParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for name, value := range params {
		out[name] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.InexactFloat64()
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		return v.InexactFloat64()
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return value
	}
}

func toDecimal(result any) (decimal.Decimal, error) {
	switch v := result.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrNonNumericResult, v)
		}
		return fromFloat(v), nil
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrNonNumericResult, v)
		}
		return parsed, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrNonNumericResult, result)
	}
}

// significantDigits is what a float64 round-trips through decimal text without loss.
const significantDigits = 15

func fromFloat(v float64) decimal.Decimal {
	return decimal.RequireFromString(strconv.FormatFloat(v, 'g', significantDigits, 64))
}

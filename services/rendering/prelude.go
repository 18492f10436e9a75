package rendering

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/estafette/estafette-ci-notifier/services/evaluation"
)

// preludeFunctions are available in every template expression
var preludeFunctions = map[string]govaluate.ExpressionFunction{

	"json": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("json() expects 1 argument, got %v", len(args))
		}
		bytes, err := json.Marshal(args[0])
		if err != nil {
			return nil, err
		}
		return string(bytes), nil
	},

	"join": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("join() expects 2 arguments, got %v", len(args))
		}
		values, err := toStringSlice(args[0])
		if err != nil {
			return nil, err
		}
		separator, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("join() expects a string separator, got %T", args[1])
		}
		return strings.Join(values, separator), nil
	},

	"count": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("count() expects 1 argument, got %v", len(args))
		}
		switch value := args[0].(type) {
		case string:
			return float64(len(value)), nil
		case map[string]interface{}:
			return float64(len(value)), nil
		}
		values, err := toStringSlice(args[0])
		if err != nil {
			return nil, err
		}
		return float64(len(values)), nil
	},

	"lower": func(args ...interface{}) (interface{}, error) {
		value, err := singleString("lower", args)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(value), nil
	},

	"upper": func(args ...interface{}) (interface{}, error) {
		value, err := singleString("upper", args)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(value), nil
	},

	"isLastNFailed": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("isLastNFailed() expects 2 arguments, got %v", len(args))
		}
		helper, ok := args[0].(*evaluation.Helper)
		if !ok || helper == nil {
			return nil, fmt.Errorf("isLastNFailed() expects helper as first argument, got %T", args[0])
		}
		n, ok := args[1].(float64)
		if !ok {
			return nil, fmt.Errorf("isLastNFailed() expects a number as second argument, got %T", args[1])
		}
		return helper.IsLastNFailed(int(n)), nil
	},
}

func singleString(name string, args []interface{}) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%v() expects 1 argument, got %v", name, len(args))
	}
	value, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%v() expects a string, got %T", name, args[0])
	}
	return value, nil
}

func toStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, i := range v {
			values = append(values, fmt.Sprintf("%v", i))
		}
		return values, nil
	}
	return nil, fmt.Errorf("Expected a list, got %T", value)
}

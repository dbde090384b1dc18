package rules

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Actions     Actions
	Children    []CompiledRule
}

type Engine struct {
	rules []CompiledRule
}

// Compile builds an engine from a rule tree. Filters are expr programs
// evaluated against Input; compilation failures name the offending rule.
func Compile(rules []Rule) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	return &Engine{rules: compiled}, nil
}

func compileRules(rules []Rule) ([]CompiledRule, error) {
	var compiledRules []CompiledRule

	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%s: filter compilation: %w", rule.Description, err)
		}

		childCompiledRules, err := compileRules(rule.Children)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		}

		compiledRules = append(compiledRules, CompiledRule{
			Description: rule.Description,
			Filter:      cf,
			Actions:     rule.Actions,
			Children:    childCompiledRules,
		})
	}

	return compiledRules, nil
}

// Execute evaluates the tree against the input, merging the actions of
// every matching rule. Children are visited only under a matching parent.
func (e *Engine) Execute(in Input) (Output, error) {
	out := Output{
		Capabilities: map[string]bool{},
		Settings:     Settings{},
	}

	if err := executeRules(e.rules, in, &out); err != nil {
		return Output{}, err
	}

	return out, nil
}

func executeRules(rules []CompiledRule, in Input, out *Output) error {
	for _, rule := range rules {
		result, err := expr.Run(rule.Filter, in)
		if err != nil {
			return fmt.Errorf("%s: filter execution: %w", rule.Description, err)
		}

		matched, ok := result.(bool)
		if !ok {
			return fmt.Errorf("%s: filter did not evaluate to a boolean", rule.Description)
		}

		if !matched {
			continue
		}

		for _, name := range rule.Actions.Grant {
			out.Capabilities[name] = true
		}

		for _, name := range rule.Actions.Deny {
			out.Capabilities[name] = false
		}

		for k, v := range rule.Actions.Settings {
			out.Settings[k] = v
		}

		if err := executeRules(rule.Children, in, out); err != nil {
			return err
		}
	}

	return nil
}

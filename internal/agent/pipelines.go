package agent

import (
	"fmt"

	"github.com/seenimoa/ibexai/internal/agent/prompts"
)

// Pipeline names.
const (
	PipelineBasic    = "basic_report"
	PipelineExtended = "extended_report"
	PipelineChat     = "chat"
)

// Run input keys each pipeline is called with.
var (
	BasicInputs    = []string{prompts.InputMarketData, prompts.InputNews, prompts.InputProfile, prompts.InputObjective}
	ExtendedInputs = append(append([]string(nil), BasicInputs...), prompts.InputVolatility)
	ChatInputs     = []string{prompts.InputContext, prompts.InputQuestion}
)

// PipelineConfig holds the three fixed pipeline shapes.
type PipelineConfig struct {
	Basic    Pipeline
	Extended Pipeline
	Chat     Pipeline
}

// NewPipelineConfig assembles the fixed pipelines from the registry and
// validates each against its run inputs. Stages shared between Basic and
// Extended are the same values.
func NewPipelineConfig(r *Registry) (*PipelineConfig, error) {
	task := func(name string) (*TaskTemplate, error) {
		t, ok := r.Task(name)
		if !ok {
			return nil, fmt.Errorf("%w: task %s not registered", ErrInvalidPipeline, name)
		}
		return t, nil
	}

	var (
		stages = make(map[string]*TaskTemplate)
		err    error
	)
	for _, name := range []string{
		prompts.TaskMarketAnalysis,
		prompts.TaskInvestmentRecommendation,
		prompts.TaskRiskAssessment,
		prompts.TaskVisualization,
		prompts.TaskReportGeneration,
		prompts.TaskChatQuery,
	} {
		if stages[name], err = task(name); err != nil {
			return nil, err
		}
	}

	market := Stage{
		Task:     stages[prompts.TaskMarketAnalysis],
		Requires: []string{prompts.InputMarketData, prompts.InputNews},
	}
	advice := Stage{
		Task:     stages[prompts.TaskInvestmentRecommendation],
		Requires: []string{prompts.InputProfile, prompts.InputObjective},
	}
	risk := Stage{
		Task:     stages[prompts.TaskRiskAssessment],
		Requires: []string{prompts.InputVolatility, prompts.InputProfile},
	}
	visual := Stage{
		Task: stages[prompts.TaskVisualization],
	}
	basicEditor := Stage{
		Task:     stages[prompts.TaskReportGeneration],
		Consumes: []string{prompts.AgentMarketAnalyst},
	}
	extendedEditor := Stage{
		Task:     stages[prompts.TaskReportGeneration],
		Consumes: []string{prompts.AgentMarketAnalyst, prompts.AgentInvestmentAdvisor, prompts.AgentRiskAnalyst},
	}

	cfg := &PipelineConfig{
		Basic: Pipeline{
			Name:   PipelineBasic,
			Stages: []Stage{market, advice, basicEditor},
		},
		Extended: Pipeline{
			Name:   PipelineExtended,
			Stages: []Stage{market, advice, risk, visual, extendedEditor},
		},
		Chat: Pipeline{
			Name: PipelineChat,
			Stages: []Stage{{
				Task:     stages[prompts.TaskChatQuery],
				Requires: []string{prompts.InputContext, prompts.InputQuestion},
			}},
		},
	}
	for _, v := range []struct {
		p      Pipeline
		inputs []string
	}{
		{cfg.Basic, BasicInputs},
		{cfg.Extended, ExtendedInputs},
		{cfg.Chat, ChatInputs},
	} {
		if err := v.p.Validate(v.inputs); err != nil {
			return nil, fmt.Errorf("build %s: %w", v.p.Name, err)
		}
	}
	return cfg, nil
}

// Report returns the report pipeline for the extended flag.
func (c *PipelineConfig) Report(extended bool) Pipeline {
	if extended {
		return c.Extended
	}
	return c.Basic
}

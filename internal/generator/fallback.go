package generator

import "fmt"

// 兜底内容：生成服务重试耗尽后使用，保证回合永远可以完成

var fallbackScenarios = []Scenario{
	{
		Title:        "Grid Failure",
		Description:  "A critical system failure threatens the city's power grid. The council must decide how to allocate limited resources to address this crisis.",
		Consequences: "Either path strains the city; the council's choice decides who carries the burden.",
		Options: []Option{
			{ID: "option1", Text: "Divert resources from other sectors to fix the power grid immediately"},
			{ID: "option2", Text: "Implement rolling blackouts and gradually repair the system"},
		},
	},
	{
		Title:        "Synthetic Plague",
		Description:  "An engineered pathogen is spreading through the industrial districts. Containment is possible, but the quarantine would shut down half the city's production lines.",
		Consequences: "Lives or livelihoods: the council cannot protect both at once.",
		Options: []Option{
			{ID: "option1", Text: "Enforce a full quarantine of the affected districts"},
			{ID: "option2", Text: "Keep production running and distribute experimental antivirals"},
			{ID: "option3", Text: "Seal the city borders and let the districts fend for themselves"},
		},
	},
	{
		Title:        "The Archive Leak",
		Description:  "Classified council records have leaked to the public feeds. Crowds are gathering outside the citadel demanding answers about decisions made in previous sessions.",
		Consequences: "Transparency may cost the council its authority; silence may cost it the streets.",
		Options: []Option{
			{ID: "option1", Text: "Publish the full archive and accept the fallout"},
			{ID: "option2", Text: "Denounce the leak as fabricated and restore order by force"},
		},
	},
}

var fallbackOutcomes = []Outcome{
	{
		Narrative: "The council's decision holds the city together, but the strain shows everywhere. Repairs drag on, tempers fray, and every ministry quietly bills the others for the cost.",
		Deltas: map[string]int{
			"tech":      -10,
			"manpower":  -5,
			"economy":   -15,
			"happiness": -10,
			"trust":     -5,
		},
	},
	{
		Narrative: "Order is restored faster than anyone expected, and the ministries briefly look competent. The bill arrives later, buried in the quarterly reports.",
		Deltas: map[string]int{
			"tech":      5,
			"economy":   -10,
			"happiness": 5,
			"trust":     -5,
		},
	},
}

// FallbackScenario 按轮数轮转兜底剧本
func FallbackScenario(round int) *Scenario {
	base := fallbackScenarios[(round-1+len(fallbackScenarios))%len(fallbackScenarios)]

	// 返回副本，避免调用方改动共享模板
	scenario := base
	scenario.Options = append([]Option(nil), base.Options...)
	scenario.Title = fmt.Sprintf("%s (Round %d)", base.Title, round)

	return &scenario
}

// FallbackOutcome 按轮数轮转兜底结算
func FallbackOutcome(round int) *Outcome {
	base := fallbackOutcomes[(round-1+len(fallbackOutcomes))%len(fallbackOutcomes)]

	outcome := base
	outcome.Deltas = make(map[string]int, len(base.Deltas))
	for name, delta := range base.Deltas {
		outcome.Deltas[name] = delta
	}

	return &outcome
}

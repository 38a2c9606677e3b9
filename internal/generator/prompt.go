package generator

import (
	"fmt"
	"sort"
	"strings"
)

// 提示词均要求模型只输出严格 JSON，解析失败按生成失败处理

const scenarioSystemPrompt = `You are the game master of a futuristic government council game.
Each round you present a morally complex crisis to a council of up to four ministers
who share five resources: tech, manpower, economy, happiness, trust (0-100 each).
Respond with strict JSON only, no markdown, matching:
{"title": "...", "description": "...", "consequences": "...",
 "options": [{"id": "option1", "text": "..."}, {"id": "option2", "text": "..."}]}
Provide 2 to 4 options. Keep the description under 120 words.`

const outcomeSystemPrompt = `You are the game master of a futuristic government council game.
The council has voted on a crisis. Narrate what happens and decide how the five shared
resources change. Respond with strict JSON only, no markdown, matching:
{"narrative": "...", "resource_deltas": {"tech": 0, "manpower": 0, "economy": 0, "happiness": 0, "trust": 0}}
Deltas are integers between -50 and 50. Keep the narrative under 80 words.`

func buildScenarioPrompt(sc SessionContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current round: %d\n", sc.Round)
	fmt.Fprintf(&b, "Council size: %d\n", sc.PlayerCount)
	b.WriteString("Resources:\n")
	writeResources(&b, sc.Resources)
	b.WriteString("\nCreate the next crisis. It should pressure the weakest resources and invite betrayal or cooperation.")

	return b.String()
}

func buildOutcomePrompt(sc SessionContext, winning Option, totals map[string]float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current round: %d\n", sc.Round)
	b.WriteString("Resources before the outcome:\n")
	writeResources(&b, sc.Resources)
	fmt.Fprintf(&b, "\nThe council chose: %s\n", winning.Text)

	if len(totals) > 0 {
		b.WriteString("Weighted vote totals:\n")

		ids := make([]string, 0, len(totals))
		for id := range totals {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			fmt.Fprintf(&b, "- %s: %.1f\n", id, totals[id])
		}
	}

	b.WriteString("\nNarrate the outcome and set the resource deltas.")

	return b.String()
}

func writeResources(b *strings.Builder, resources map[string]int) {
	// 固定顺序，保证提示词可复现
	for _, name := range []string{"tech", "manpower", "economy", "happiness", "trust"} {
		fmt.Fprintf(b, "- %s: %d\n", name, resources[name])
	}
}

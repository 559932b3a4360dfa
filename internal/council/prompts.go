package council

import (
	"fmt"
	"strings"
)

// BuildRankingPrompt asks a judge to evaluate the anonymized answers and end
// with a machine-readable FINAL RANKING section.
func BuildRankingPrompt(question string, entries []AnonymizedEntry) string {
	var responsesText strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&responsesText, "%s:\n%s\n\n", e.Label, e.Content)
	}

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s
Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, question, responsesText.String())
}

// BuildChairmanPrompt composes the synthesis prompt. Every stage 1 entry is
// listed in council order; failed members are kept and marked as failed so
// the chairman knows who was silent. The consensus table comes from
// aggregate, and each judge's de-anonymized ranking follows.
func BuildChairmanPrompt(question string, stage1 StageOneResult, stage2 StageTwoResult) string {
	var stage1Text strings.Builder
	if len(stage1) == 0 {
		stage1Text.WriteString("No council members were consulted.\n\n")
	}
	for _, resp := range stage1 {
		switch {
		case !resp.Succeeded:
			fmt.Fprintf(&stage1Text, "Model: %s\nResponse: [no response - model call failed]\n\n", resp.Model)
		case strings.TrimSpace(resp.Content) == "":
			fmt.Fprintf(&stage1Text, "Model: %s\nResponse: [empty response]\n\n", resp.Model)
		default:
			fmt.Fprintf(&stage1Text, "Model: %s\nResponse: %s\n\n", resp.Model, resp.Content)
		}
	}
	if stage1.Succeeded() == 0 {
		stage1Text.WriteString("Note: no council member produced an answer; answer the question directly.\n\n")
	}

	var stage2Text strings.Builder
	switch {
	case stage2.Skipped:
		stage2Text.WriteString("Peer ranking was skipped because fewer than two answers were available.\n\n")
	default:
		stage2Text.WriteString("Consensus ordering (higher score is better):\n")
		for _, agg := range stage2.AggregateRankings {
			avg := "n/a"
			if agg.AverageRank != nil {
				avg = fmt.Sprintf("%.2f", *agg.AverageRank)
			}
			fmt.Fprintf(&stage2Text, "%d. %s - score %d, votes %d, average rank %s\n",
				agg.Position, agg.Model, agg.TotalScore, agg.VoteCount, avg)
		}
		stage2Text.WriteString("\n")

		for _, r := range stage2.Rankings {
			if !r.Succeeded {
				fmt.Fprintf(&stage2Text, "Judge: %s\nRanking: [no ranking - model call failed]\n\n", r.Model)
				continue
			}
			models := make([]string, 0, len(r.ParsedRanking))
			for _, label := range r.ParsedRanking {
				models = append(models, stage2.LabelToModel[label])
			}
			parsed := "[unparseable]"
			if len(models) > 0 {
				parsed = strings.Join(models, " > ")
			}
			fmt.Fprintf(&stage2Text, "Judge: %s\nParsed ranking: %s\nEvaluation: %s\n\n", r.Model, parsed, r.Ranking)
		}
	}

	return fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s
STAGE 2 - Peer Rankings:
%s
Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, question, stage1Text.String(), stage2Text.String())
}

// BuildTitlePrompt asks for a 3-5 word conversation title.
func BuildTitlePrompt(question string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, question)
}

package council

import (
	"regexp"
	"sort"
	"strings"
)

var (
	finalRankingHeader = regexp.MustCompile(`(?i)final\s+ranking\s*:?`)
	numberedLabel      = regexp.MustCompile(`(?i)\d+\s*[.):]\s*\**\s*Response ([A-Z]{1,2})\b`)
	anyLabel           = regexp.MustCompile(`(?i)\bResponse ([A-Z]{1,2})\b`)
)

// ParseRanking extracts a best-to-worst label sequence from a judge's free
// text. It prefers the numbered list after the last "FINAL RANKING:" header,
// then any labels after that header, then any labels in the whole text.
// Repeated labels count once (first occurrence) and labels outside known
// are dropped. Text without a usable ranking yields an empty slice.
func ParseRanking(text string, known []string) []string {
	var found []string
	if locs := finalRankingHeader.FindAllStringIndex(text, -1); len(locs) > 0 {
		section := text[locs[len(locs)-1][1]:]
		found = matchLabels(numberedLabel, section)
		if len(found) == 0 {
			found = matchLabels(anyLabel, section)
		}
	}
	if len(found) == 0 {
		found = matchLabels(anyLabel, text)
	}
	return filterLabels(found, known)
}

func matchLabels(re *regexp.Regexp, text string) []string {
	var labels []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		labels = append(labels, labelPrefix+strings.ToUpper(m[1]))
	}
	return labels
}

func filterLabels(labels, known []string) []string {
	allowed := make(map[string]struct{}, len(known))
	for _, l := range known {
		allowed[l] = struct{}{}
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := allowed[l]; !ok {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

type tally struct {
	model     string
	score     int
	votes     int
	rankTotal int
}

// Aggregate combines judges' rankings into one standing per model.
//
// A judge's i-th (0-based) valid label earns totalLabels-i points for its
// model; omitted models earn nothing from that judge. Judges with an empty
// ranking contribute nothing. Every model in models gets an entry, zero
// valued if never ranked. The result is sorted by total score descending,
// then average rank ascending, then the order of models.
func Aggregate(rankings []RankingResponse, labelToModel map[string]string, totalLabels int, models []string) []AggregateRanking {
	tallies := make([]*tally, 0, len(models))
	byModel := make(map[string]*tally, len(models))
	add := func(model string) {
		if _, ok := byModel[model]; ok {
			return
		}
		t := &tally{model: model}
		tallies = append(tallies, t)
		byModel[model] = t
	}
	for _, m := range models {
		add(m)
	}
	for _, label := range sortedLabels(labelToModel) {
		add(labelToModel[label])
	}

	for _, r := range rankings {
		seen := make(map[string]struct{}, len(r.ParsedRanking))
		pos := 0
		for _, label := range r.ParsedRanking {
			model, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}

			t := byModel[model]
			if points := totalLabels - pos; points > 0 {
				t.score += points
			}
			t.votes++
			t.rankTotal += pos + 1
			pos++
		}
	}

	out := make([]AggregateRanking, len(tallies))
	for i, t := range tallies {
		out[i] = AggregateRanking{Model: t.model, TotalScore: t.score, VoteCount: t.votes}
		if t.votes > 0 {
			avg := float64(t.rankTotal) / float64(t.votes)
			out[i].AverageRank = &avg
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		switch {
		case a.AverageRank != nil && b.AverageRank != nil:
			return *a.AverageRank < *b.AverageRank
		case a.AverageRank != nil:
			return true
		default:
			return false
		}
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

func sortedLabels(labelToModel map[string]string) []string {
	labels := make([]string, 0, len(labelToModel))
	for l := range labelToModel {
		labels = append(labels, l)
	}
	// Shorter labels first so Response Z sorts before Response AA.
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) < len(labels[j])
		}
		return labels[i] < labels[j]
	})
	return labels
}

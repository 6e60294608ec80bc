package pipeline

// Aggregate inspects a result list and reports how much usable data it
// holds. A source contributes iff its task returned at least one article;
// once articles exist its error field is irrelevant, and a source with
// zero articles counts the same whether or not it recorded an error.
func Aggregate(results []SourceResult) AggregateOutcome {
	out := AggregateOutcome{}
	for _, res := range results {
		if len(res.Articles) == 0 {
			continue
		}
		out.TotalArticles += len(res.Articles)
		out.ContributingSources++
		out.ContributorNames = append(out.ContributorNames, res.Source)
	}
	return out
}

// Ready reports whether enough data exists to attempt synthesis.
func (o AggregateOutcome) Ready() bool { return o.ContributingSources > 0 }

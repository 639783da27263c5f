package usecase

import "sort"

var exampleQueries = map[string]string{
	"university":  "I want to apply for a Master's in Computer Science at Stanford University",
	"visa":        "I need documents for a US work visa (H1-B visa application)",
	"job":         "Applying for a software engineer position at Google",
	"loan":        "Need documents for a home mortgage loan application",
	"scholarship": "Applying for a full scholarship to study abroad",
	"immigration": "Documents needed for Canadian permanent residency application",
}

// ExampleQuery returns a canned query; unknown kinds fall back to university.
func ExampleQuery(kind string) (string, bool) {
	q, ok := exampleQueries[kind]
	if !ok {
		return exampleQueries["university"], false
	}
	return q, true
}

func ExampleKinds() []string {
	kinds := make([]string, 0, len(exampleQueries))
	for k := range exampleQueries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

package safety

import (
	"fmt"
	"regexp"
)

// Category is a named group of regular expressions.
type Category struct {
	Name     string
	Patterns []string
}

// PatternSet is an ordered list of categories. Order determines the order of
// issues and recommendations in a verdict.
type PatternSet []Category

// Tables holds every static table the analyzers read from.
type Tables struct {
	Harmful        PatternSet
	Bias           PatternSet
	Ethical        PatternSet
	ToxicWords     []string
	BiasWeights    map[string]float64
	BiasMitigation map[string]string
	DenyList       []string
}

// DefaultTables returns the built-in pattern and weight tables.
func DefaultTables() Tables {
	return Tables{
		Harmful: PatternSet{
			{Name: "violence", Patterns: []string{
				`\b(kill|murder|assassinate|bomb|terrorist|attack)\b`,
				`\b(harm|hurt|injure|damage|destroy)\b`,
				`\b(weapon|gun|knife|explosive)\b`,
			}},
			{Name: "hate_speech", Patterns: []string{
				`\b(racist|sexist|homophobic|transphobic)\b`,
				`\b(discriminate|prejudice|bigot)\b`,
				`\b(superior|inferior|hate)\b`,
			}},
			{Name: "illegal_activities", Patterns: []string{
				`\b(illegal|crime|criminal|fraud|steal)\b`,
				`\b(drugs|weapons|hacking|phishing)\b`,
				`\b(exploit|manipulate|deceive)\b`,
			}},
			{Name: "personal_information", Patterns: []string{
				`\b(ssn|social security|credit card|password)\b`,
				`\b(address|phone|email|personal)\b`,
				`\b(private|confidential|secret)\b`,
			}},
		},
		Bias: PatternSet{
			{Name: "gender_bias", Patterns: []string{
				`\b(man|men|woman|women|male|female)\b.*\b(should|must|always|never)\b`,
				`\b(girls|boys)\b.*\b(can't|shouldn't|mustn't)\b`,
				`\b(feminine|masculine)\b.*\b(traits|characteristics)\b`,
				`\b(men|women|girls|boys)\b.*\b(caretakers?|homemakers?|breadwinners?|too emotional)\b`,
			}},
			{Name: "racial_bias", Patterns: []string{
				`\b(race|ethnicity|skin color)\b.*\b(determines|causes|results in)\b`,
				`\b(cultural|background)\b.*\b(inferior|superior)\b`,
				`\b(stereotype|assumption)\b.*\b(based on|because of)\b`,
			}},
			{Name: "age_bias", Patterns: []string{
				`\b(young|old|elderly|teenager)\b.*\b(can't|shouldn't|mustn't)\b`,
				`\b(age|generation)\b.*\b(determines|limits|restricts)\b`,
			}},
			{Name: "socioeconomic_bias", Patterns: []string{
				`\b(poor|rich|wealthy|poverty)\b.*\b(deserves|earned|responsible)\b`,
				`\b(education|income)\b.*\b(determines|causes|results in)\b`,
			}},
		},
		Ethical: PatternSet{
			{Name: "privacy", Patterns: []string{
				`\b(personal data|private information|confidential)\b`,
				`\b(track|monitor|surveil)\b.*\b(without consent)\b`,
			}},
			{Name: "manipulation", Patterns: []string{
				`\b(manipulate|deceive|trick|mislead)\b`,
				`\b(psychological|emotional)\b.*\b(control|influence)\b`,
			}},
			{Name: "discrimination", Patterns: []string{
				`\b(discriminate|exclude|prefer)\b.*\b(based on|because of)\b`,
				`\b(treat differently)\b.*\b(race|gender|age|religion)\b`,
			}},
		},
		ToxicWords: []string{
			"hate", "kill", "hurt", "harm", "attack", "destroy",
			"stupid", "idiot", "moron", "worthless", "useless",
		},
		BiasWeights: map[string]float64{
			"gender_bias":        0.3,
			"racial_bias":        0.3,
			"age_bias":           0.2,
			"socioeconomic_bias": 0.2,
		},
		BiasMitigation: map[string]string{
			"gender_bias":        "Use gender-neutral language and avoid stereotypes",
			"racial_bias":        "Focus on individual characteristics, not group assumptions",
			"age_bias":           "Avoid age-based assumptions and generalizations",
			"socioeconomic_bias": "Consider individual circumstances, not economic status",
		},
		DenyList: []string{"kill", "hate", "harm", "attack", "destroy"},
	}
}

type compiledCategory struct {
	name     string
	patterns []*regexp.Regexp
}

type compiledSet []compiledCategory

func compileSet(set PatternSet) (compiledSet, error) {
	out := make(compiledSet, 0, len(set))
	for _, c := range set {
		cc := compiledCategory{name: c.Name}
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %s: compile %q: %w", c.Name, p, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		out = append(out, cc)
	}
	return out, nil
}

type toxicWord struct {
	word string
	re   *regexp.Regexp
}

func compileWords(words []string) []toxicWord {
	out := make([]toxicWord, 0, len(words))
	for _, w := range words {
		out = append(out, toxicWord{
			word: w,
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`),
		})
	}
	return out
}

// scan runs every pattern of every category against already lower-cased text.
// Each match adds increment to the category score; scores are clamped to [0,1].
// issue renders the single issue string of a category that matched.
func (s compiledSet) scan(lower string, increment float64, issue func(category string, matches []string) string) Analysis {
	a := Analysis{
		Categories: make([]CategoryScore, 0, len(s)),
		Issues:     []string{},
	}
	for _, c := range s {
		score := 0.0
		var matched []string
		for _, re := range c.patterns {
			matches := re.FindAllString(lower, -1)
			score += float64(len(matches)) * increment
			matched = append(matched, matches...)
		}
		if len(matched) > 0 {
			a.Issues = append(a.Issues, issue(c.name, matched))
		}
		a.Categories = append(a.Categories, CategoryScore{Name: c.name, Score: clamp(score)})
	}
	return a
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

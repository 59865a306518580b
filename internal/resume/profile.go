package resume

import (
	"slices"
	"strings"
)

// Profile is the structured view of a résumé.
type Profile struct {
	Skills     []string     `json:"skills"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
}

// Experience is one employment entry.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// Education is one degree entry.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
}

// missing reports whether s is a placeholder for an absent value.
func missing(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NA", "N/A", "NULL", "NONE":
		return true
	}
	return false
}

// normalize trims every field, drops placeholder skills, deduplicates
// skills case-insensitively and drops entries that carry no information.
func (p Profile) normalize() Profile {
	out := Profile{}
	seen := make(map[string]bool, len(p.Skills))
	for _, s := range p.Skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if missing(s) || seen[key] {
			continue
		}
		seen[key] = true
		out.Skills = append(out.Skills, s)
	}
	for _, e := range p.Experience {
		e = Experience{strings.TrimSpace(e.Title), strings.TrimSpace(e.Company), strings.TrimSpace(e.Description)}
		if missing(e.Title) && missing(e.Company) && missing(e.Description) {
			continue
		}
		out.Experience = append(out.Experience, e)
	}
	for _, e := range p.Education {
		e = Education{strings.TrimSpace(e.Degree), strings.TrimSpace(e.Institution)}
		if missing(e.Degree) && missing(e.Institution) {
			continue
		}
		out.Education = append(out.Education, e)
	}
	return out
}

// Empty reports whether the profile carries no skills, experience or
// education.
func (p Profile) Empty() bool {
	return len(p.Skills) == 0 && len(p.Experience) == 0 && len(p.Education) == 0
}

// Vocabulary returns the terms a speech transcript of this candidate is
// likely to contain and mishear: skills and company names.
func (p Profile) Vocabulary() []string {
	var out []string
	out = append(out, p.Skills...)
	for _, e := range p.Experience {
		if !missing(e.Company) {
			out = append(out, e.Company)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package parser

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Registry holds known bank profiles. It is not modified after construction.
type Registry struct {
	profiles []models.BankProfile
	content  [][]*regexp.Regexp
}

// NewRegistry builds a registry from the built-in profiles followed by extra.
// An extra profile replaces a built-in one with the same name.
func NewRegistry(extra ...models.BankProfile) (*Registry, error) {
	var builtin []models.BankProfile
	if err := yaml.Unmarshal(builtinProfiles, &builtin); err != nil {
		return nil, fmt.Errorf("built-in profiles: %w", err)
	}

	byName := make(map[string]int)
	var all []models.BankProfile
	for _, p := range append(builtin, extra...) {
		key := strings.ToLower(p.Name)
		if i, ok := byName[key]; ok {
			all[i] = p
			continue
		}
		byName[key] = len(all)
		all = append(all, p)
	}

	r := &Registry{profiles: all, content: make([][]*regexp.Regexp, len(all))}
	for i, p := range all {
		for _, expr := range p.Detection.ContentPatterns {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("profile %s: content pattern %q: %w", p.Name, expr, err)
			}
			r.content[i] = append(r.content[i], re)
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry of the built-in profiles only.
func DefaultRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadProfiles reads a YAML list of profiles from path.
func LoadProfiles(path string) ([]models.BankProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %q: %w", path, err)
	}
	var profiles []models.BankProfile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles %q: %w", path, err)
	}
	for i, p := range profiles {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("profiles %q: entry %d has no name", path, i)
		}
	}
	return profiles, nil
}

// Profiles returns a copy of the known profiles in registry order.
func (r *Registry) Profiles() []models.BankProfile {
	out := make([]models.BankProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Get looks a profile up by name, case-insensitively.
func (r *Registry) Get(name string) (*models.BankProfile, bool) {
	for i := range r.profiles {
		if strings.EqualFold(r.profiles[i].Name, name) {
			p := r.profiles[i]
			return &p, true
		}
	}
	return nil, false
}

// Detect finds the profile matching filename, the header line or the content.
// Signals are tried in that order across all profiles. Returns nil when
// nothing matches.
func (r *Registry) Detect(filename, header, content string) *models.BankProfile {
	if r == nil {
		return nil
	}
	base := strings.ToLower(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if base != "" && base != "." {
		for i, p := range r.profiles {
			for _, glob := range p.Detection.FilenamePatterns {
				if ok, _ := path.Match(strings.ToLower(glob), base); ok {
					return r.pick(i)
				}
			}
		}
	}

	lowerHeader := strings.ToLower(header)
	if lowerHeader != "" {
		for i, p := range r.profiles {
			if containsAll(lowerHeader, p.Detection.HeaderKeywords) {
				return r.pick(i)
			}
		}
	}

	if content != "" {
		for i := range r.profiles {
			for _, re := range r.content[i] {
				if re.MatchString(content) {
					return r.pick(i)
				}
			}
		}
	}
	return nil
}

func (r *Registry) pick(i int) *models.BankProfile {
	p := r.profiles[i]
	return &p
}

func containsAll(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, kw := range keywords {
		if !strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

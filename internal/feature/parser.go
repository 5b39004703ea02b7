package feature

import (
	"fmt"
	"io"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/caseflow/caseflow/internal/types"
)

// ModuleTagPrefix marks the feature-level tag that names the target module,
// e.g. @module:checkout
const ModuleTagPrefix = "module:"

// ParsedFeature is the result of parsing one .feature file
type ParsedFeature struct {
	// Name is the feature's title line
	Name string

	// ModuleName is taken from a @module:<name> feature tag, empty when absent
	ModuleName string

	// Cases are the draft test cases derived from the feature's scenarios,
	// in document order. Scenario outlines contribute one case per
	// examples row.
	Cases []*types.TestCase
}

// ParseFile parses gherkin source into draft test cases. The filename is
// only used for source references and error messages; content comes from r.
//
// Each scenario becomes one draft case: the scenario name is the title,
// steps keep their Given/When/Then keywords, background steps become
// preconditions, and tags (feature plus scenario, without the @) carry
// over. Outlines are expanded with <placeholder> substitution, one case
// per examples row.
func ParseFile(r io.Reader, filename string) (*ParsedFeature, error) {
	doc, err := gherkin.ParseGherkinDocument(r, (&messages.Incrementing{}).NewId)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if doc.Feature == nil {
		return nil, fmt.Errorf("no feature found in %s", filename)
	}

	parsed := &ParsedFeature{Name: doc.Feature.Name}

	var featureTags []string
	for _, tag := range doc.Feature.Tags {
		name := strings.TrimPrefix(tag.Name, "@")
		if strings.HasPrefix(name, ModuleTagPrefix) {
			parsed.ModuleName = strings.TrimPrefix(name, ModuleTagPrefix)
			continue
		}
		featureTags = append(featureTags, name)
	}

	walkChildren(parsed, doc.Feature.Children, featureTags, filename, "")
	return parsed, nil
}

// walkChildren processes feature or rule children in order. A background
// applies to every scenario that follows it within the same scope.
func walkChildren(parsed *ParsedFeature, children []*messages.FeatureChild, featureTags []string, filename, inheritedPre string) {
	preconditions := inheritedPre
	for _, child := range children {
		switch {
		case child.Background != nil:
			preconditions = joinNonEmpty(inheritedPre, renderSteps(child.Background.Steps, nil))
		case child.Scenario != nil:
			parsed.Cases = append(parsed.Cases,
				expandScenario(child.Scenario, featureTags, filename, preconditions)...)
		case child.Rule != nil:
			walkRule(parsed, child.Rule, featureTags, filename, preconditions)
		}
	}
}

func walkRule(parsed *ParsedFeature, rule *messages.Rule, featureTags []string, filename, inheritedPre string) {
	preconditions := inheritedPre
	for _, child := range rule.Children {
		switch {
		case child.Background != nil:
			preconditions = joinNonEmpty(inheritedPre, renderSteps(child.Background.Steps, nil))
		case child.Scenario != nil:
			parsed.Cases = append(parsed.Cases,
				expandScenario(child.Scenario, featureTags, filename, preconditions)...)
		}
	}
}

// expandScenario turns a scenario into draft cases. Plain scenarios yield
// one case; outlines yield one per examples row with placeholders filled in.
func expandScenario(sc *messages.Scenario, featureTags []string, filename, preconditions string) []*types.TestCase {
	tags := make([]string, 0, len(featureTags)+len(sc.Tags))
	tags = append(tags, featureTags...)
	for _, tag := range sc.Tags {
		tags = append(tags, strings.TrimPrefix(tag.Name, "@"))
	}

	sourceRef := fmt.Sprintf("%s#%s", filename, sc.Name)

	if len(sc.Examples) == 0 {
		return []*types.TestCase{newDraft(sc.Name, sc.Description, renderSteps(sc.Steps, nil), preconditions, tags, sourceRef)}
	}

	var cases []*types.TestCase
	for _, examples := range sc.Examples {
		if examples.TableHeader == nil {
			continue
		}
		header := make([]string, len(examples.TableHeader.Cells))
		for i, cell := range examples.TableHeader.Cells {
			header[i] = cell.Value
		}

		for _, row := range examples.TableBody {
			subst := make(map[string]string, len(header))
			values := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				if i < len(header) {
					subst[header[i]] = cell.Value
				}
				values[i] = cell.Value
			}

			title := fmt.Sprintf("%s (%s)", substitute(sc.Name, subst), strings.Join(values, ", "))
			cases = append(cases, newDraft(title, sc.Description,
				renderSteps(sc.Steps, subst), preconditions, tags, sourceRef))
		}
	}
	return cases
}

func newDraft(title, description, steps, preconditions string, tags []string, sourceRef string) *types.TestCase {
	return &types.TestCase{
		Title:         strings.TrimSpace(title),
		Description:   strings.TrimSpace(description),
		Preconditions: preconditions,
		Steps:         steps,
		Priority:      2,
		Status:        types.CaseDraft,
		Automation:    types.AutomationCandidate,
		Source:        types.SourceFeatureFile,
		SourceRef:     sourceRef,
		Tags:          tags,
	}
}

// renderSteps flattens steps into text, one per line, keeping the gherkin
// keywords. Doc strings and data tables are indented under their step.
func renderSteps(steps []*messages.Step, subst map[string]string) string {
	var lines []string
	for _, step := range steps {
		text := step.Text
		if subst != nil {
			text = substitute(text, subst)
		}
		lines = append(lines, strings.TrimSpace(step.Keyword)+" "+text)

		if step.DocString != nil {
			content := step.DocString.Content
			if subst != nil {
				content = substitute(content, subst)
			}
			for _, l := range strings.Split(content, "\n") {
				lines = append(lines, "  "+l)
			}
		}
		if step.DataTable != nil {
			for _, row := range step.DataTable.Rows {
				cells := make([]string, len(row.Cells))
				for i, cell := range row.Cells {
					v := cell.Value
					if subst != nil {
						v = substitute(v, subst)
					}
					cells[i] = v
				}
				lines = append(lines, "  | "+strings.Join(cells, " | ")+" |")
			}
		}
	}
	return strings.Join(lines, "\n")
}

func substitute(text string, subst map[string]string) string {
	for key, value := range subst {
		text = strings.ReplaceAll(text, "<"+key+">", value)
	}
	return text
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}

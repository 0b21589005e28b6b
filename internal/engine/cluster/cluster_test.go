package cluster

import (
	"testing"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/target"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexTemplate(id string, word string) template.Template {
	return template.Template{
		ID: id,
		Info: template.Info{Name: id},
		Requests: template.Requests{
			HTTP: []template.HTTPRequest{{
				HttpRaw: template.HttpRaw{Path: &template.Http{Path: []string{"{{BaseURL}}/"}}},
				Operators: template.Operators{
					Matchers: []*template.Matcher{
						{MatcherType: template.Word{Words: []string{word}}, Part: target.Body},
					},
				},
			}},
		},
	}
}

// TestBuild_ClustersIdenticalIndexProbes covers scenario E3: two templates
// with identical single "{{BaseURL}}/" GET requests and distinct Word
// matchers land in one web_default ClusterExecute with two operators.
func TestBuild_ClustersIdenticalIndexProbes(t *testing.T) {
	templates := []template.Template{
		indexTemplate("tpl-a", "nginx"),
		indexTemplate("tpl-b", "apache"),
	}

	result := Build(templates)
	require.Len(t, result.WebDefault, 1)
	assert.Len(t, result.WebDefault[0].Operators, 2)
}

// TestBuild_DistinctPathsDoNotCluster exercises the negative case: two
// templates whose single HTTP request has different paths cannot be
// equivalent, so they land in separate executes.
func TestBuild_DistinctPathsDoNotCluster(t *testing.T) {
	a := template.Template{
		ID: "a",
		Requests: template.Requests{HTTP: []template.HTTPRequest{{
			HttpRaw:   template.HttpRaw{Path: &template.Http{Path: []string{"{{BaseURL}}/a"}}},
			Operators: template.Operators{Matchers: []*template.Matcher{{MatcherType: template.Word{Words: []string{"x"}}}}},
		}}},
	}
	b := template.Template{
		ID: "b",
		Requests: template.Requests{HTTP: []template.HTTPRequest{{
			HttpRaw:   template.HttpRaw{Path: &template.Http{Path: []string{"{{BaseURL}}/b"}}},
			Operators: template.Operators{Matchers: []*template.Matcher{{MatcherType: template.Word{Words: []string{"y"}}}}},
		}}},
	}

	result := Build([]template.Template{a, b})
	assert.Len(t, result.WebOther, 2)
}

// TestBuild_FaviconSplit covers invariant #3: a favicon-bearing template's
// favicon matchers end up in web_favicon while its non-favicon matchers
// remain in the ordinary bucket they'd otherwise land in.
func TestBuild_FaviconSplit(t *testing.T) {
	tpl := template.Template{
		ID: "mixed",
		Requests: template.Requests{HTTP: []template.HTTPRequest{{
			HttpRaw: template.HttpRaw{Path: &template.Http{Path: []string{"{{BaseURL}}/", "{{BaseURL}}/favicon.ico"}}},
			Operators: template.Operators{Matchers: []*template.Matcher{
				{MatcherType: template.Word{Words: []string{"nginx"}}},
				{MatcherType: template.Favicon{Hash: []string{"abc123"}}},
			}},
		}}},
	}

	result := Build([]template.Template{tpl})
	require.Len(t, result.WebDefault, 1)
	require.Len(t, result.WebDefault[0].Operators, 1)
	assert.Len(t, result.WebDefault[0].Operators[0].Operators[0].Matchers, 1)

	require.Len(t, result.WebFavicon, 1)
	require.Len(t, result.WebFavicon[0].Operators, 1)
	assert.Len(t, result.WebFavicon[0].Operators[0].Operators[0].Matchers, 1)
}

// TestBuild_FaviconOnlySynthesizesIndex covers §4.8 step 6: a template
// whose only matcher is a Favicon matcher has no ordinary probe left, so
// Build synthesizes a "{{BaseURL}}/" GET into web_default to give the
// favicon bucket a response to match against.
func TestBuild_FaviconOnlySynthesizesIndex(t *testing.T) {
	tpl := template.Template{
		ID: "favicon-only",
		Requests: template.Requests{HTTP: []template.HTTPRequest{{
			HttpRaw:   template.HttpRaw{Path: &template.Http{Path: []string{"{{BaseURL}}/favicon.ico"}}},
			Operators: template.Operators{Matchers: []*template.Matcher{{MatcherType: template.Favicon{Hash: []string{"abc"}}}}},
		}}},
	}

	result := Build([]template.Template{tpl})
	require.Len(t, result.WebDefault, 1)
	assert.True(t, result.WebDefault[0].Requests.IsWebDefault())
	require.Len(t, result.WebFavicon, 1)
}

// TestBuild_SkipsInvalidRegex covers the "regex compile failure skips the
// pattern, not the template" policy at the cluster level: a template whose
// only matcher is an unparsable regex still compiles (its matcher set is
// simply inert), so it is never silently dropped from the template count.
func TestBuild_SkipsInvalidRegex(t *testing.T) {
	tpl := template.Template{
		ID: "bad-regex",
		Requests: template.Requests{HTTP: []template.HTTPRequest{{
			HttpRaw:   template.HttpRaw{Path: &template.Http{Path: []string{"{{BaseURL}}/"}}},
			Operators: template.Operators{Matchers: []*template.Matcher{{MatcherType: template.MRegex{Regex: []string{"("}}}}},
		}}},
	}

	result := Build([]template.Template{tpl})
	assert.Equal(t, 1, result.Count())
}

func TestType_Count(t *testing.T) {
	result := Build([]template.Template{indexTemplate("a", "x"), indexTemplate("b", "y")})
	assert.Equal(t, result.Count(), len(result.WebDefault)+len(result.WebOther)+len(result.WebFavicon)+len(result.TCPOther))
}

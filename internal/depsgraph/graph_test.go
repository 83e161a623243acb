package depsgraph

import (
	"reflect"
	"testing"

	"github.com/grovetools/release-plz-go/internal/model"
)

func pkgWithPathDeps(name string, deps ...string) *model.Package {
	p := &model.Package{Name: name}
	for _, d := range deps {
		p.Deps = append(p.Deps, model.Dependency{Name: d, Kind: model.DepNormal, Path: "../" + d})
	}
	return p
}

func TestReleaseOrder(t *testing.T) {
	tests := []struct {
		name     string
		packages []*model.Package
		expected [][]string
		wantErr  bool
	}{
		{
			name: "simple linear dependency",
			packages: []*model.Package{
				pkgWithPathDeps("a"),
				pkgWithPathDeps("b", "a"),
				pkgWithPathDeps("c", "b"),
			},
			expected: [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name: "parallel dependencies",
			packages: []*model.Package{
				pkgWithPathDeps("core"),
				pkgWithPathDeps("context", "core"),
				pkgWithPathDeps("proxy", "core"),
				pkgWithPathDeps("flow", "context"),
			},
			expected: [][]string{{"core"}, {"context", "proxy"}, {"flow"}},
		},
		{
			name: "independent packages",
			packages: []*model.Package{
				pkgWithPathDeps("a"),
				pkgWithPathDeps("b"),
				pkgWithPathDeps("c"),
			},
			expected: [][]string{{"a", "b", "c"}},
		},
		{
			name: "circular dependency",
			packages: []*model.Package{
				pkgWithPathDeps("a", "b"),
				pkgWithPathDeps("b", "a"),
			},
			wantErr: true,
		},
		{
			name: "dev-dependency edges are not path-dependency edges",
			packages: []*model.Package{
				pkgWithPathDeps("a"),
				func() *model.Package {
					p := pkgWithPathDeps("b")
					p.Deps = append(p.Deps, model.Dependency{Name: "a", Kind: model.DepDev, Path: "../a"})
					return p
				}(),
			},
			expected: [][]string{{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := &model.Workspace{Packages: tt.packages}
			g := New(ws)
			got, err := g.ReleaseOrder(nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ReleaseOrder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

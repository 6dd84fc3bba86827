package diagram

import (
	"bytes"
	"strings"
	"testing"

	"archdoc/internal/architecture"
	"archdoc/internal/manifest"
)

func buildModel(t *testing.T, projects ...*manifest.Project) *architecture.Model {
	t.Helper()
	a := architecture.NewAssembler(architecture.AssemblerOptions{FollowLibraries: true}, nil)
	m, _ := a.Assemble(architecture.Input{
		Root:     "/repo",
		System:   architecture.SystemIdentity{Name: "Shop", Description: "Online \"store\""},
		Projects: projects,
	})
	return m
}

func shopProjects() []*manifest.Project {
	return []*manifest.Project{
		{
			Name:     "Web",
			Path:     "/repo/Web/Web.csproj",
			Sdk:      "Microsoft.NET.Sdk.Web",
			Packages: []manifest.Package{{Name: "Newtonsoft.Json"}},
		},
		{
			Name:       "Worker",
			Path:       "/repo/Worker/Worker.csproj",
			Sdk:        "Microsoft.NET.Sdk",
			OutputType: "Exe",
			Packages:   []manifest.Package{{Name: "RabbitMQ.Client"}},
		},
		{
			Name:     "Worker.Tests",
			Path:     "/repo/Worker.Tests/Worker.Tests.csproj",
			Sdk:      "Microsoft.NET.Sdk",
			Packages: []manifest.Package{{Name: "xunit"}},
		},
	}
}

func TestContainers(t *testing.T) {
	m := buildModel(t, shopProjects()...)

	d, err := Containers(m)
	if err != nil {
		t.Fatalf("Containers() error = %v", err)
	}
	src := string(d.Source)

	wants := []string{
		"@startuml containers\n",
		"!include <C4/C4_Container>",
		"' model " + m.Fingerprint(),
		"title Container diagram for Shop",
		`System_Boundary(system, "Shop") {`,
		`  Container(container_web, "Web", "ASP.NET Core", "Web application")`,
		`  Container(container_worker, "Worker", ".NET Console", "Background service")`,
		`SystemQueue_Ext(queue_rabbitmq, "RabbitMQ", "Message broker")`,
		`Rel(container_worker, queue_rabbitmq, "depends on", "AMQP")`,
		"SHOW_LEGEND()\n@enduml\n",
	}
	for _, w := range wants {
		if !strings.Contains(src, w) {
			t.Errorf("source missing %q\n%s", w, src)
		}
	}
	if strings.Contains(src, "Tests") {
		t.Errorf("test project leaked into diagram:\n%s", src)
	}
}

func TestContext(t *testing.T) {
	m := buildModel(t, shopProjects()...)

	d, err := Context(m)
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	src := string(d.Source)

	for _, w := range []string{
		"!include <C4/C4_Context>",
		`System(system, "Shop", "Online 'store'")`,
		`Rel(system, queue_rabbitmq, "uses", "AMQP")`,
	} {
		if !strings.Contains(src, w) {
			t.Errorf("source missing %q\n%s", w, src)
		}
	}
	if strings.Contains(src, "Container(") {
		t.Error("context diagram should not list containers")
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	first, err := Serialize(buildModel(t, shopProjects()...))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Serialize(buildModel(t, shopProjects()...))
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != 2 || first[0].Name != ContextName || first[1].Name != ContainerName {
		t.Fatalf("Serialize() names = %v", first)
	}
	for i := range first {
		if !bytes.Equal(first[i].Source, second[i].Source) {
			t.Errorf("%s differs between runs", first[i].Name)
		}
	}
}

func TestContainers_Insufficient(t *testing.T) {
	m := buildModel(t, &manifest.Project{Name: "Core", Path: "/repo/Core/Core.csproj", Sdk: "Microsoft.NET.Sdk"})

	d, err := Containers(m)
	if err != nil {
		t.Fatal(err)
	}
	src := string(d.Source)
	if !strings.Contains(src, "note as N0") || !strings.Contains(src, "No deployable containers") {
		t.Errorf("expected a notice:\n%s", src)
	}
	if strings.Contains(src, "System_Boundary") {
		t.Error("insufficient model should not draw an empty boundary")
	}
}

func TestBuilder_DropsDanglingRelationships(t *testing.T) {
	b := NewBuilder("test", KindContainer, "Test")
	b.Entity("Container", "a", "A")
	b.Entity("Container", "b", "B")
	b.Rel("a", "b", "uses", "")
	b.Rel("a", "ghost", "uses", "")
	b.Rel("ghost", "b", "uses", "")

	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	src := string(d.Source)
	if got := strings.Count(src, "Rel("); got != 1 {
		t.Errorf("Rel count = %d, want 1\n%s", got, src)
	}
	if strings.Contains(src, "ghost") {
		t.Errorf("dangling target serialized:\n%s", src)
	}
	if !strings.Contains(src, `Rel(a, b, "uses")`) {
		t.Errorf("protocol-less Rel missing:\n%s", src)
	}
}

func TestBuilder_Aliases(t *testing.T) {
	tests := []struct {
		keys []string
		want []string
	}{
		{[]string{"database:postgresql"}, []string{"database_postgresql"}},
		{[]string{"a-b", "a.b", "a b"}, []string{"a_b", "a_b_2", "a_b_3"}},
		{[]string{"9lives"}, []string{"e_9lives"}},
		{[]string{"x", "x"}, []string{"x", "x"}},
	}

	for _, tt := range tests {
		b := NewBuilder("t", KindContext, "T")
		for i, k := range tt.keys {
			if got := b.alias(k); got != tt.want[i] {
				t.Errorf("alias(%q) = %q, want %q", k, got, tt.want[i])
			}
		}
	}
}

func TestBuilder_UnclosedBoundary(t *testing.T) {
	b := NewBuilder("t", KindContainer, "T")
	b.OpenBoundary("System_Boundary", "s", "S")
	b.Entity("Container", "c", "C")

	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(d.Source), "{") != strings.Count(string(d.Source), "}") {
		t.Errorf("unbalanced boundary:\n%s", d.Source)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"two\nlines", "two lines"},
		{`say "hi"`, "say 'hi'"},
		{"  padded\r\n", "padded"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

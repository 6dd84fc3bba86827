package architecture

import (
	"strings"
	"unicode"

	"archdoc/internal/manifest"
)

// Legacy project type GUIDs that mark ASP.NET web applications
var legacyWebProjectTypes = []string{
	"{349c5851-65df-11da-9384-00065b846f21}", // ASP.NET MVC / Web Application
	"{E3E379DF-F4C6-4180-9B81-6769533ABE47}", // ASP.NET MVC 4
	"{E53F8FEA-EAE0-44A6-8774-FFD645390401}", // ASP.NET MVC 3
	"{F85E285D-A4E0-4152-9332-AB1D724D3325}", // ASP.NET MVC 2
}

var webSdks = []string{
	"Microsoft.NET.Sdk.Web",
	"Microsoft.NET.Sdk.Razor",
	"Microsoft.NET.Sdk.BlazorWebAssembly",
}

const workerSdk = "Microsoft.NET.Sdk.Worker"

// servicePackages refine the technology label of executable projects, in priority order.
var servicePackages = []struct {
	pkg   string
	label string
}{
	{"Microsoft.Extensions.Hosting", ".NET Worker Service"},
	{"Hangfire", "Hangfire"},
	{"Quartz", "Quartz.NET"},
	{"Topshelf", "Topshelf Service"},
	{"NServiceBus", "NServiceBus Endpoint"},
	{"MassTransit", "MassTransit Consumer"},
	{"Azure.Functions.Worker", "Azure Functions"},
}

var webFrameworkPrefixes = []string{
	"Microsoft.AspNetCore",
	"Microsoft.AspNet.Mvc",
	"Microsoft.AspNet.WebApi",
	"Microsoft.AspNet.SignalR",
	"Microsoft.Owin",
	"Nancy",
	"ServiceStack",
}

var migrationPackages = []string{
	"Microsoft.EntityFrameworkCore.Design",
	"Microsoft.EntityFrameworkCore.Tools",
	"FluentMigrator",
	"dbup",
	"Evolve",
	"EntityFramework",
}

var testPackages = []string{
	"xunit",
	"xunit.core",
	"NUnit",
	"MSTest.TestFramework",
	"Microsoft.NET.Test.Sdk",
}

// Classification is the outcome of classifying one project
type Classification struct {
	Kind       ContainerKind
	Technology string
	Rule       string
}

type classifyRule struct {
	name       string
	kind       ContainerKind
	match      func(p *manifest.Project) bool
	technology func(p *manifest.Project) string
}

// classifyRules is evaluated top to bottom; the first match wins.
var classifyRules = []classifyRule{
	{
		name: "legacy-web-project-type",
		kind: KindWeb,
		match: func(p *manifest.Project) bool {
			for _, g := range legacyWebProjectTypes {
				if p.HasProjectType(g) {
					return true
				}
			}
			return false
		},
		technology: fixed("ASP.NET"),
	},
	{
		name: "web-sdk",
		kind: KindWeb,
		match: func(p *manifest.Project) bool {
			for _, sdk := range webSdks {
				if strings.EqualFold(p.Sdk, sdk) {
					return true
				}
			}
			return false
		},
		technology: func(p *manifest.Project) string {
			if strings.EqualFold(p.Sdk, "Microsoft.NET.Sdk.BlazorWebAssembly") {
				return "Blazor WebAssembly"
			}
			return "ASP.NET Core"
		},
	},
	{
		name: "executable",
		kind: KindService,
		match: func(p *manifest.Project) bool {
			return p.IsExecutable() || strings.EqualFold(p.Sdk, workerSdk)
		},
		technology: func(p *manifest.Project) string {
			for _, sp := range servicePackages {
				if p.HasPackagePrefix(sp.pkg) {
					return sp.label
				}
			}
			if strings.EqualFold(p.Sdk, workerSdk) {
				return ".NET Worker Service"
			}
			return ".NET Console"
		},
	},
	{
		name: "web-framework",
		kind: KindWeb,
		match: func(p *manifest.Project) bool {
			for _, prefix := range webFrameworkPrefixes {
				if p.HasPackagePrefix(prefix) {
					return true
				}
			}
			return p.HasFrameworkReference("System.Web")
		},
		technology: func(p *manifest.Project) string {
			if p.Dialect == manifest.DialectLegacy {
				return "ASP.NET"
			}
			return "ASP.NET Core"
		},
	},
	{
		name: "migrations",
		kind: KindPersistence,
		match: func(p *manifest.Project) bool {
			for _, pkg := range migrationPackages {
				if p.HasPackage(pkg) || p.HasPackagePrefix(pkg+".") || p.HasPackagePrefix(pkg+"-") {
					return true
				}
			}
			return false
		},
		technology: func(p *manifest.Project) string {
			if p.HasPackagePrefix("Microsoft.EntityFrameworkCore") {
				return "EF Core"
			}
			if p.HasPackage("EntityFramework") {
				return "Entity Framework"
			}
			return "Database Migrations"
		},
	},
}

func fixed(label string) func(*manifest.Project) string {
	return func(*manifest.Project) string { return label }
}

// Classify assigns a container kind to a non-test project.
// Projects matching no rule are libraries.
func Classify(p *manifest.Project) Classification {
	for _, rule := range classifyRules {
		if rule.match(p) {
			return Classification{
				Kind:       rule.kind,
				Technology: withFramework(rule.technology(p), p.TargetFramework),
				Rule:       rule.name,
			}
		}
	}
	return Classification{
		Kind:       KindLibrary,
		Technology: withFramework(".NET Library", p.TargetFramework),
		Rule:       "default",
	}
}

// IsTestProject reports whether p is a test project by explicit flag,
// naming convention or test framework packages.
func IsTestProject(p *manifest.Project) bool {
	if p.IsTestProject {
		return true
	}
	if isTestName(p.Name) {
		return true
	}
	for _, pkg := range testPackages {
		if p.HasPackage(pkg) {
			return true
		}
	}
	return false
}

var testSuffixes = []string{"Tests", "Test", "Specs", "Spec"}

// isTestName reports whether the last word of name is Test(s) or Spec(s),
// split either by a separator or by a camel-case boundary. Contests and
// Latest do not qualify.
func isTestName(name string) bool {
	for _, suffix := range testSuffixes {
		if len(name) < len(suffix) {
			continue
		}
		head, tail := name[:len(name)-len(suffix)], name[len(name)-len(suffix):]
		if head == "" {
			if strings.EqualFold(tail, suffix) {
				return true
			}
			continue
		}
		prev := head[len(head)-1]
		switch {
		case prev == '.' || prev == '_' || prev == '-':
			if strings.EqualFold(tail, suffix) {
				return true
			}
		case tail == suffix && (unicode.IsLower(rune(prev)) || unicode.IsDigit(rune(prev))):
			return true
		}
	}
	return false
}

func withFramework(label, framework string) string {
	if framework == "" {
		return label
	}
	return label + ", " + framework
}

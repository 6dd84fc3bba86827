package render

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"archdoc/internal/errors"
)

// Check statuses
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// DoctorCheck is one toolchain diagnostic.
type DoctorCheck struct {
	Name           string             `json:"name"`
	Status         string             `json:"status"`
	Message        string             `json:"message"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// DoctorReport summarizes which tiers can run on this machine.
type DoctorReport struct {
	Healthy         bool          `json:"healthy"`
	Tier            Tier          `json:"tier"`
	Checks          []DoctorCheck `json:"checks"`
	QueryDurationMs int64         `json:"queryDurationMs"`
}

// DoctorOptions controls Diagnose
type DoctorOptions struct {
	// Fetch downloads the jar when missing
	Fetch bool
}

// Diagnose inspects the local toolchain and the hosted service without rendering.
// Either argument may be nil.
func Diagnose(ctx context.Context, p *PlantUML, s *OnlineService, opts DoctorOptions) *DoctorReport {
	start := time.Now()
	report := &DoctorReport{}
	localReady := true

	if p == nil {
		localReady = false
		report.Checks = append(report.Checks, DoctorCheck{Name: "java", Status: StatusWarn, Message: "local rendering not configured"})
	} else {
		javaCheck, versionOK := checkJava(ctx, p)
		report.Checks = append(report.Checks, javaCheck)
		jarCheck, jarOK := checkJar(ctx, p, opts.Fetch)
		report.Checks = append(report.Checks, jarCheck)
		localReady = versionOK && jarOK
	}

	reachable := false
	if s != nil && s.URL() != "" {
		reachable = s.Reachable(ctx)
		c := DoctorCheck{Name: "render-service", Status: StatusPass, Message: fmt.Sprintf("%s reachable (probe only; online rendering is not implemented)", s.URL())}
		if !reachable {
			c.Status = StatusWarn
			c.Message = fmt.Sprintf("%s unreachable", s.URL())
		}
		report.Checks = append(report.Checks, c)
	}

	report.Tier = selectTier(localReady, reachable)
	report.Healthy = localReady
	report.QueryDurationMs = time.Since(start).Milliseconds()
	return report
}

func checkJava(ctx context.Context, p *PlantUML) (DoctorCheck, bool) {
	fixes := errors.GetSuggestedFixes(errors.ToolchainUnavailable)
	path, err := p.JavaPath()
	if err != nil {
		return DoctorCheck{Name: "java", Status: StatusFail, Message: "java not found on PATH", SuggestedFixes: fixes}, false
	}
	v, err := p.JavaVersion(ctx)
	if err != nil {
		return DoctorCheck{Name: "java", Status: StatusFail, Message: fmt.Sprintf("%s: %v", path, err), SuggestedFixes: fixes}, false
	}
	if p.minJava != nil && v.LessThan(p.minJava) {
		return DoctorCheck{
			Name:           "java",
			Status:         StatusFail,
			Message:        fmt.Sprintf("java %s at %s is older than required %s", v, path, p.minJava),
			SuggestedFixes: fixes,
		}, false
	}
	return DoctorCheck{Name: "java", Status: StatusPass, Message: fmt.Sprintf("java %s at %s", v, path)}, true
}

func checkJar(ctx context.Context, p *PlantUML, fetch bool) (DoctorCheck, bool) {
	if fetch {
		if err := p.Acquire(ctx); err != nil {
			return DoctorCheck{Name: "plantuml", Status: StatusFail, Message: err.Error()}, false
		}
	}
	info, err := os.Stat(p.JarPath())
	if err != nil {
		return DoctorCheck{
			Name:    "plantuml",
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s missing; it is downloaded on the first render", p.JarPath()),
			SuggestedFixes: []errors.FixAction{{
				Type:        errors.RunCommand,
				Command:     "archdoc doctor --fetch",
				Safe:        true,
				Description: "Download PlantUML now",
			}},
		}, true
	}
	return DoctorCheck{
		Name:    "plantuml",
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%s)", p.JarPath(), humanize.Bytes(uint64(info.Size()))),
	}, true
}

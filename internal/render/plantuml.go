package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-getter"
	"github.com/kballard/go-shellquote"

	"archdoc/internal/config"
	"archdoc/internal/errors"
	"archdoc/internal/paths"
	"archdoc/internal/slogutil"
)

// JarName is the cached PlantUML jar file name
const JarName = "plantuml.jar"

// PlantUML renders through `java -jar plantuml.jar`.
type PlantUML struct {
	java            string
	jvmArgs         []string
	minJava         *semver.Version
	jarPath         string
	downloadURL     string
	checksum        string
	versionTimeout  time.Duration
	renderTimeout   time.Duration
	downloadTimeout time.Duration
	logger          *slog.Logger
}

// NewPlantUML builds the local tier from render configuration.
func NewPlantUML(cfg config.RenderConfig, logger *slog.Logger) (*PlantUML, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}

	args, err := shellquote.Split(cfg.JavaArgs)
	if err != nil {
		return nil, errors.NewArchError(errors.ConfigInvalid, "render.javaArgs is not valid shell syntax", err)
	}

	var minJava *semver.Version
	if cfg.MinJavaVersion != "" {
		minJava, err = semver.NewVersion(cfg.MinJavaVersion)
		if err != nil {
			return nil, errors.NewArchError(errors.ConfigInvalid, "render.minJavaVersion is not a version", err)
		}
	}

	jar := cfg.PlantUMLJar
	if jar == "" {
		dir, err := paths.GetToolsDir(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("resolving tools directory: %w", err)
		}
		jar = filepath.Join(dir, JarName)
	}

	java := cfg.JavaBinary
	if java == "" {
		java = "java"
	}

	return &PlantUML{
		java:            java,
		jvmArgs:         args,
		minJava:         minJava,
		jarPath:         jar,
		downloadURL:     cfg.DownloadURL,
		checksum:        cfg.DownloadChecksum,
		versionTimeout:  10 * time.Second,
		renderTimeout:   millis(cfg.RenderTimeoutMs, time.Minute),
		downloadTimeout: millis(cfg.DownloadTimeoutMs, 2*time.Minute),
		logger:          logger,
	}, nil
}

// JarPath returns where the jar is expected
func (p *PlantUML) JarPath() string {
	return p.jarPath
}

// JavaPath resolves the java executable.
func (p *PlantUML) JavaPath() (string, error) {
	path, err := exec.LookPath(p.java)
	if err != nil {
		return "", errors.NewArchError(errors.ToolchainUnavailable, "java executable not found", err)
	}
	return path, nil
}

var (
	javaVersionPattern = regexp.MustCompile(`version "([^"]+)"`)
	versionNumbers     = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?`)
)

// JavaVersion runs `java -version` and parses the reported version.
func (p *PlantUML) JavaVersion(ctx context.Context) (*semver.Version, error) {
	javaPath, err := p.JavaPath()
	if err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, p.versionTimeout)
	defer cancel()

	// java prints its version to stderr
	output, err := exec.CommandContext(vctx, javaPath, "-version").CombinedOutput()
	if err != nil {
		return nil, errors.NewArchError(errors.ToolchainUnavailable, "java -version failed", err)
	}
	v, err := ParseJavaVersion(string(output))
	if err != nil {
		return nil, errors.NewArchError(errors.ToolchainUnavailable, "cannot read java version", err)
	}
	return v, nil
}

// ParseJavaVersion extracts the runtime version from `java -version` output.
// The legacy "1.8.0_292" scheme maps to 8.0.292; components past the patch
// level ("11.0.20.1") and pre-release tags are ignored.
func ParseJavaVersion(output string) (*semver.Version, error) {
	m := javaVersionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("no version in %q", strings.TrimSpace(firstLine(output)))
	}
	raw := m[1]
	if strings.HasPrefix(raw, "1.") {
		parts := strings.SplitN(raw, ".", 3)
		update := "0"
		if len(parts) == 3 {
			if i := strings.IndexByte(parts[2], '_'); i >= 0 {
				update = parts[2][i+1:]
			}
		}
		raw = parts[1] + ".0." + update
	}

	n := versionNumbers.FindStringSubmatch(raw)
	if n == nil {
		return nil, fmt.Errorf("unrecognized java version %q", m[1])
	}
	minor, patch := n[2], n[3]
	if minor == "" {
		minor = "0"
	}
	if patch == "" {
		patch = "0"
	}
	return semver.NewVersion(n[1] + "." + minor + "." + patch)
}

// Acquire downloads the jar when it is absent. A present jar is left alone.
func (p *PlantUML) Acquire(ctx context.Context) error {
	if _, err := os.Stat(p.jarPath); err == nil {
		return nil
	}
	if p.downloadURL == "" {
		return errors.NewArchError(errors.ToolchainUnavailable, "plantuml jar missing and no download URL configured", nil)
	}
	if _, err := paths.EnsureDir(filepath.Dir(p.jarPath)); err != nil {
		return errors.NewArchError(errors.ToolchainUnavailable, "cannot create tools directory", err)
	}

	src := p.downloadURL
	if p.checksum != "" {
		sep := "?"
		if strings.Contains(src, "?") {
			sep = "&"
		}
		src += sep + "checksum=" + p.checksum
	}

	dctx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	defer cancel()

	// Download beside the target and rename so a partial file never looks like a jar
	tmp := p.jarPath + ".download"
	client := &getter.Client{
		Ctx:     dctx,
		Src:     src,
		Dst:     tmp,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}

	p.logger.Info("Downloading PlantUML", "url", p.downloadURL, "destination", p.jarPath)
	if err := client.Get(); err != nil {
		_ = os.Remove(tmp)
		return errors.NewArchError(errors.ToolchainUnavailable, "downloading plantuml failed", err)
	}
	if err := os.Rename(tmp, p.jarPath); err != nil {
		_ = os.Remove(tmp)
		return errors.NewArchError(errors.ToolchainUnavailable, "installing plantuml jar failed", err)
	}
	return nil
}

// Ready verifies java, its version and the jar.
func (p *PlantUML) Ready(ctx context.Context) error {
	v, err := p.JavaVersion(ctx)
	if err != nil {
		return err
	}
	if p.minJava != nil && v.LessThan(p.minJava) {
		return errors.NewArchError(errors.ToolchainUnavailable,
			fmt.Sprintf("java %s is older than required %s", v, p.minJava), nil)
	}
	return p.Acquire(ctx)
}

// Render invokes PlantUML on sourcePath and returns the image path.
func (p *PlantUML) Render(ctx context.Context, sourcePath, format string) (string, error) {
	javaPath, err := p.JavaPath()
	if err != nil {
		return "", err
	}

	args := append([]string{}, p.jvmArgs...)
	args = append(args, "-jar", p.jarPath, "-t"+format, "-charset", "UTF-8", sourcePath)

	rctx, cancel := context.WithTimeout(ctx, p.renderTimeout)
	defer cancel()

	cmd := exec.CommandContext(rctx, javaPath, args...)
	cmd.Dir = filepath.Dir(sourcePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("Running PlantUML", "java", javaPath, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("plantuml exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("running plantuml: %w", err)
	}

	out := OutputPath(sourcePath, format)
	info, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("plantuml produced no %s output: %w", format, err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("plantuml produced an empty %s", filepath.Base(out))
	}
	return out, nil
}

// OutputPath returns the image path PlantUML writes for sourcePath.
func OutputPath(sourcePath, format string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + "." + format
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Package publish drives the full release flow for one installer artifact:
// identity resolution, catalog entry lookup, upload, and entry creation or
// update, with the outcome recorded in the local ledger and announced via
// notifications.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"packmule/internal/artifact"
	"packmule/internal/audit"
	"packmule/internal/catalog"
	"packmule/internal/config"
	"packmule/internal/fileutil"
	"packmule/internal/history"
	"packmule/internal/logging"
	"packmule/internal/match"
	"packmule/internal/notify"
	"packmule/internal/pkgmap"
	"packmule/internal/resolve"
)

// Options controls one publish run.
type Options struct {
	// ArtifactPath points at the local package or disk image.
	ArtifactPath string
	// Name overrides the production entry name derived from the artifact or
	// the package map.
	Name string
	// TestName publishes a second entry under a test name.
	TestName string
	// Category and TestCategory override the Self Service category names.
	Category     string
	TestCategory string
	// ForceCreate skips entry lookup and always creates a new entry.
	ForceCreate bool
	// DryRun resolves and plans but performs no uploads or catalog writes.
	DryRun bool
}

// Outcome is the result for one target entry.
type Outcome struct {
	AppName    string
	Action     string
	EntryID    string
	EntryURL   string
	Identifier string
	Version    string
	DryRun     bool
	// Detail explains skips in operator-facing terms.
	Detail string
}

// Service wires the pipeline stages together for publish runs.
type Service struct {
	cfg      *config.Config
	client   *catalog.Client
	resolver *resolve.Resolver
	matcher  *match.Matcher
	packages pkgmap.Map
	notifier notify.Notifier
	ledger   *history.Store
	logger   *slog.Logger

	categories       []catalog.Category
	categoriesLoaded bool
}

// New constructs a publish Service. The package map, notifier, and ledger
// are optional.
func New(cfg *config.Config, client *catalog.Client, resolver *resolve.Resolver,
	packages pkgmap.Map, notifier notify.Notifier, ledger *history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notify.New("", logger)
	}
	return &Service{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		matcher: match.New(match.Options{
			Threshold:   cfg.Matcher.SimilarityThreshold,
			TokenLength: cfg.Matcher.UploadTokenLength,
		}, logger),
		packages: packages,
		notifier: notifier,
		ledger:   ledger,
		logger:   logger,
	}
}

// target is one catalog entry the artifact should land in.
type target struct {
	name     string
	category string
	test     bool
	// derived marks a name synthesized from the artifact rather than
	// supplied by the operator or the package map; only derived names get
	// the new-app naming template on creation.
	derived bool
}

// Publish resolves the artifact and pushes it to every target entry. All
// successful outcomes are returned even when a later target fails.
func (s *Service) Publish(ctx context.Context, opts Options) ([]Outcome, error) {
	var known func(string) bool
	if len(s.packages) > 0 {
		known = s.packages.Contains
	}

	res, err := s.resolver.Resolve(ctx, opts.ArtifactPath, resolve.Options{KnownIdentifier: known})
	if err != nil {
		s.notify(ctx, opts, notify.StatusError, filepath.Base(opts.ArtifactPath),
			fmt.Sprintf("Identity resolution failed: %v", err), "")
		return nil, err
	}

	uploadPath := opts.ArtifactPath
	if res.CopiedPath != "" {
		uploadPath = res.CopiedPath
		defer func() {
			if err := os.Remove(res.CopiedPath); err != nil {
				s.logger.Warn("failed to remove extracted package", "path", res.CopiedPath, "error", err)
			}
		}()
	}

	sha, err := fileutil.HashFile(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint artifact: %w", err)
	}

	entries, err := s.client.List(ctx)
	if err != nil {
		s.notify(ctx, opts, notify.StatusError, filepath.Base(opts.ArtifactPath),
			fmt.Sprintf("Catalog listing failed: %v", err), "")
		return nil, err
	}

	targets := s.targets(res, opts)
	hints := hintEntries(entries, targets)

	var outcomes []Outcome
	for _, tgt := range targets {
		outcome, err := s.publishTarget(ctx, res, tgt, entries, hints, uploadPath, sha, opts)
		if err != nil {
			s.notify(ctx, opts, notify.StatusError, tgt.name, fmt.Sprintf("Publish failed: %v", err), "")
			return outcomes, fmt.Errorf("publish %q: %w", tgt.name, err)
		}
		outcomes = append(outcomes, outcome)
		s.record(ctx, res, outcome, sha)
		s.announce(ctx, opts, outcome)
	}
	return outcomes, nil
}

// targets resolves the entry names and categories for this run. Operator
// flags win over the package map, which wins over the derived name.
func (s *Service) targets(res resolve.Resolution, opts Options) []target {
	names, mapped := pkgmap.Names{}, false
	if len(s.packages) > 0 && res.Identity.Identifier != "" {
		names, mapped = s.packages.Lookup(res.Identity.Identifier)
	}

	prod := target{category: firstNonEmpty(opts.Category, names.SelfServiceCategory, s.cfg.Defaults.SelfServiceCategory)}
	switch {
	case opts.Name != "":
		prod.name = opts.Name
	case mapped && names.ProdName != "":
		prod.name = names.ProdName
	default:
		prod.name = res.DerivedName
		prod.derived = true
	}
	targets := []target{prod}

	testName := firstNonEmpty(opts.TestName, names.TestName)
	if testName != "" {
		targets = append(targets, target{
			name:     testName,
			category: firstNonEmpty(opts.TestCategory, names.TestCategory, s.cfg.Defaults.TestSelfServiceCategory),
			test:     true,
		})
	}
	return targets
}

func (s *Service) publishTarget(ctx context.Context, res resolve.Resolution, tgt target,
	entries []catalog.Entry, hints []catalog.Entry, uploadPath, sha string, opts Options) (Outcome, error) {

	outcome := Outcome{
		AppName:    tgt.name,
		Identifier: res.Identity.Identifier,
		Version:    res.Identity.Version,
		DryRun:     opts.DryRun,
	}

	entry, found, err := s.findEntry(ctx, tgt, entries, hints, uploadPath, opts)
	if err != nil {
		return Outcome{}, err
	}

	if found {
		outcome.EntryID = entry.ID
		outcome.EntryURL = s.client.EntryURL(entry.ID)
		if entry.SHA256 != "" && entry.SHA256 == sha {
			outcome.Action = history.ActionSkipped
			outcome.Detail = "artifact is identical to the current catalog file"
			return outcome, nil
		}
		outcome.Action = history.ActionUpdated
		if opts.DryRun {
			outcome.Detail = "would update " + entry.Name
			return outcome, nil
		}
		updated, err := s.update(ctx, res, tgt, entry, uploadPath)
		if err != nil {
			return Outcome{}, err
		}
		outcome.EntryID = updated.ID
		outcome.EntryURL = s.client.EntryURL(updated.ID)
		return outcome, nil
	}

	if !s.cfg.Defaults.AutoCreate && !opts.ForceCreate {
		outcome.Action = history.ActionSkipped
		outcome.Detail = "no matching catalog entry; re-run with --create or enable auto_create"
		return outcome, nil
	}

	name := tgt.name
	if tgt.derived {
		name = s.cfg.NewAppName(tgt.name)
	}
	outcome.AppName = name
	outcome.Action = history.ActionCreated
	if opts.DryRun {
		outcome.Detail = "would create " + name
		return outcome, nil
	}
	created, err := s.create(ctx, res, tgt, name, uploadPath)
	if err != nil {
		return Outcome{}, err
	}
	outcome.EntryID = created.ID
	outcome.EntryURL = s.client.EntryURL(created.ID)
	return outcome, nil
}

// findEntry locates the catalog entry this target should update: exact name
// match first, then the similarity matcher when dynamic lookup is enabled.
func (s *Service) findEntry(ctx context.Context, tgt target, entries []catalog.Entry,
	hints []catalog.Entry, uploadPath string, opts Options) (catalog.Entry, bool, error) {

	if opts.ForceCreate {
		return catalog.Entry{}, false, nil
	}

	var exact []catalog.Entry
	for _, entry := range entries {
		if entry.Name == tgt.name {
			exact = append(exact, entry)
		}
	}
	if len(exact) > 1 && tgt.category != "" {
		if id, err := s.categoryID(ctx, tgt.category); err == nil && id != "" {
			var filtered []catalog.Entry
			for _, entry := range exact {
				if entry.SelfServiceCategoryID == id {
					filtered = append(filtered, entry)
				}
			}
			if len(filtered) > 0 {
				exact = filtered
			}
		}
	}
	if len(exact) > 0 {
		if len(exact) > 1 {
			s.logger.Warn("multiple catalog entries share a name; using the first",
				"name", tgt.name, "count", len(exact))
		}
		return exact[0], true, nil
	}

	if !s.cfg.Defaults.DynamicLookup {
		return catalog.Entry{}, false, nil
	}

	matched, err := s.matcher.Match(filepath.Base(uploadPath), entries, hints)
	if err != nil {
		if errors.Is(err, artifact.ErrNoMatch) {
			return catalog.Entry{}, false, nil
		}
		return catalog.Entry{}, false, err
	}
	return matched, true, nil
}

func (s *Service) update(ctx context.Context, res resolve.Resolution, tgt target,
	entry catalog.Entry, uploadPath string) (catalog.Entry, error) {

	ticket, err := s.client.Presign(ctx, filepath.Base(uploadPath))
	if err != nil {
		return catalog.Entry{}, err
	}
	if err := s.client.Upload(ctx, ticket, uploadPath); err != nil {
		return catalog.Entry{}, err
	}

	req := catalog.UpdateRequest{FileKey: ticket.FileKey}
	// Enforcement settings on existing entries are the catalog's to keep;
	// only the audit script follows the new version.
	if s.cfg.Enforcement.Type == "audit_enforce" {
		script, err := s.auditScript(res, tgt)
		if err != nil {
			return catalog.Entry{}, err
		}
		req.AuditScript = script
	}
	updated, err := s.client.Update(ctx, entry.ID, req)
	if err != nil {
		return catalog.Entry{}, err
	}
	s.logger.Info("updated catalog entry", "name", entry.Name, "id", updated.ID, "version", res.Identity.Version)
	return updated, nil
}

func (s *Service) create(ctx context.Context, res resolve.Resolution, tgt target,
	name, uploadPath string) (catalog.Entry, error) {

	ticket, err := s.client.Presign(ctx, filepath.Base(uploadPath))
	if err != nil {
		return catalog.Entry{}, err
	}
	if err := s.client.Upload(ctx, ticket, uploadPath); err != nil {
		return catalog.Entry{}, err
	}

	enforcement, ok := config.APIEnforcement(s.cfg.Enforcement.Type)
	if !ok {
		return catalog.Entry{}, fmt.Errorf("unknown enforcement type %q", s.cfg.Enforcement.Type)
	}
	req := catalog.CreateRequest{
		Name:               name,
		FileKey:            ticket.FileKey,
		InstallType:        installType(res.Artifact.Kind),
		InstallEnforcement: enforcement,
	}
	if tgt.category != "" {
		id, err := s.categoryID(ctx, tgt.category)
		if err != nil {
			return catalog.Entry{}, err
		}
		req.ShowInSelfService = true
		req.SelfServiceCategoryID = id
	}
	if s.cfg.Enforcement.Type == "audit_enforce" {
		script, err := s.auditScript(res, tgt)
		if err != nil {
			return catalog.Entry{}, err
		}
		req.AuditScript = script
	}

	created, err := s.client.Create(ctx, req)
	if err != nil {
		return catalog.Entry{}, err
	}
	s.logger.Info("created catalog entry", "name", name, "id", created.ID, "version", res.Identity.Version)
	return created, nil
}

// auditScript customizes the configured audit script with the resolved
// identity, reads the result, and restores the pristine copy.
func (s *Service) auditScript(res resolve.Resolution, tgt target) (string, error) {
	path, err := config.ExpandPath(s.cfg.Enforcement.AuditScript)
	if err != nil {
		return "", err
	}
	delay := s.cfg.Enforcement.ProdDelayDays
	if tgt.test {
		delay = s.cfg.Enforcement.TestDelayDays
	}
	values := audit.Values{
		AppName:        strings.TrimSuffix(res.Identity.DisplayName, ".app"),
		BundleID:       res.Identity.Identifier,
		PackageID:      res.Identity.Identifier,
		MinimumVersion: res.Identity.Version,
		DelayDays:      delay,
	}
	if err := audit.Customize(path, values); err != nil {
		return "", err
	}
	data, readErr := os.ReadFile(path)
	if err := audit.Restore(path); err != nil {
		return "", err
	}
	if readErr != nil {
		return "", fmt.Errorf("read customized audit script: %w", readErr)
	}
	return string(data), nil
}

// categoryID resolves a Self Service category name, fetching the tenant's
// categories once per run.
func (s *Service) categoryID(ctx context.Context, name string) (string, error) {
	if !s.categoriesLoaded {
		categories, err := s.client.Categories(ctx)
		if err != nil {
			return "", err
		}
		s.categories = categories
		s.categoriesLoaded = true
	}
	for _, category := range s.categories {
		if strings.EqualFold(category.Name, name) {
			return category.ID, nil
		}
	}
	return "", fmt.Errorf("self service category %q not found", name)
}

func (s *Service) record(ctx context.Context, res resolve.Resolution, outcome Outcome, sha string) {
	if s.ledger == nil {
		return
	}
	_, err := s.ledger.Record(ctx, history.Event{
		Artifact:   res.Artifact.Basename(),
		AppName:    outcome.AppName,
		Action:     outcome.Action,
		EntryID:    outcome.EntryID,
		Identifier: outcome.Identifier,
		Version:    outcome.Version,
		SHA256:     sha,
		DryRun:     outcome.DryRun,
	})
	if err != nil {
		s.logger.Warn("failed to record publish event", "app", outcome.AppName, "error", err)
	}
}

func (s *Service) announce(ctx context.Context, opts Options, outcome Outcome) {
	if outcome.DryRun {
		return
	}
	switch outcome.Action {
	case history.ActionCreated:
		s.notify(ctx, opts, notify.StatusSuccess, outcome.AppName,
			fmt.Sprintf("Created catalog entry for version %s", outcome.Version), outcome.EntryURL)
	case history.ActionUpdated:
		s.notify(ctx, opts, notify.StatusSuccess, outcome.AppName,
			fmt.Sprintf("Updated catalog entry to version %s", outcome.Version), outcome.EntryURL)
	case history.ActionSkipped:
		s.notify(ctx, opts, notify.StatusWarning, outcome.AppName, outcome.Detail, outcome.EntryURL)
	}
}

func (s *Service) notify(ctx context.Context, opts Options, status notify.Status, title, body, link string) {
	if opts.DryRun {
		return
	}
	if err := s.notifier.Notify(ctx, status, title, body, link); err != nil {
		s.logger.Warn("notification failed", "title", title, "error", err)
	}
}

// hintEntries collects existing entries whose names the run already trusts;
// the matcher uses them to keep similarity matches on known records.
func hintEntries(entries []catalog.Entry, targets []target) []catalog.Entry {
	names := make(map[string]bool, len(targets))
	for _, tgt := range targets {
		if !tgt.derived {
			names[tgt.name] = true
		}
	}
	var hints []catalog.Entry
	for _, entry := range entries {
		if names[entry.Name] {
			hints = append(hints, entry)
		}
	}
	return hints
}

func installType(kind artifact.Kind) string {
	if kind == artifact.KindImage {
		return "image"
	}
	return "package"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

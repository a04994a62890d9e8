package executor

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/extract"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/fileio"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
)

// ministriesHandler owns everything under the ministries tree: the
// national list, each ministry's detail page, the departments and
// agencies found there, and the services under each agency.
type ministriesHandler struct {
	seedURL string
	rawDir  string
	outDir  string
	logger  *log.Logger

	mu           sync.Mutex
	ministries   map[string]extract.MinistryEntry
	departments  map[string]extract.DepartmentEntry
	pageAgencies map[string]extract.PageAgency
	services     map[string]extract.ServiceEntry
}

func newMinistriesHandler(cfg config.Config, logger *log.Logger) *ministriesHandler {
	h := &ministriesHandler{
		seedURL:      cfg.Seeds.MinistriesURL,
		rawDir:       filepath.Join(cfg.RawDir(), "ministries"),
		outDir:       cfg.ProcessedDir(),
		logger:       logger,
		ministries:   make(map[string]extract.MinistryEntry),
		departments:  make(map[string]extract.DepartmentEntry),
		pageAgencies: make(map[string]extract.PageAgency),
		services:     make(map[string]extract.ServiceEntry),
	}
	loadEntities(h.ministriesFile(), &h.ministries, logger)
	loadEntities(h.departmentsFile(), &h.departments, logger)
	loadEntities(h.pageAgenciesFile(), &h.pageAgencies, logger)
	loadEntities(h.servicesOutFile(), &h.services, logger)
	return h
}

func (h *ministriesHandler) listRawFile() string {
	return filepath.Join(h.rawDir, "ministries_list.html")
}

func (h *ministriesHandler) overviewFile(ministryID string) string {
	return filepath.Join(h.rawDir, ministryID, "overview.html")
}

func (h *ministriesHandler) departmentsAgenciesFile(ministryID string) string {
	return filepath.Join(h.rawDir, ministryID, "departments_agencies.html")
}

func (h *ministriesHandler) servicesFile(ministryID, departmentID, agencyID string) string {
	return filepath.Join(h.rawDir, ministryID, departmentID, agencyID, "services.html")
}

func (h *ministriesHandler) ministriesFile() string {
	return filepath.Join(h.outDir, "ministries.json")
}

func (h *ministriesHandler) departmentsFile() string {
	return filepath.Join(h.outDir, "departments.json")
}

func (h *ministriesHandler) pageAgenciesFile() string {
	return filepath.Join(h.outDir, "page_agencies.json")
}

func (h *ministriesHandler) servicesOutFile() string {
	return filepath.Join(h.outDir, "services.json")
}

func (h *ministriesHandler) scrapeList(ctx context.Context, client Fetcher) error {
	if fileio.Exists(h.listRawFile()) {
		h.logger.Printf("ministries: list raw file already present at %s", h.listRawFile())
		return nil
	}
	html, err := client.Fetch(ctx, h.seedURL)
	if err != nil {
		return fmt.Errorf("scrape ministries list: %w", err)
	}
	return fileio.WriteRaw(h.listRawFile(), []byte(html))
}

// processList parses the national ministries list and returns the
// ministry ids in page order. Entries already enriched by a previous
// run keep their descriptions and counts.
func (h *ministriesHandler) processList() ([]string, error) {
	raw, err := os.ReadFile(h.listRawFile())
	if err != nil {
		return nil, fmt.Errorf("ministries list raw file not available for processing: %w", err)
	}
	entries, err := extract.ParseMinistriesList(string(raw))
	if err != nil {
		return nil, fmt.Errorf("process ministries list: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.MinistryID)
		if _, ok := h.ministries[entry.MinistryID]; !ok {
			h.ministries[entry.MinistryID] = entry
		}
	}
	h.logger.Printf("ministries: list processed into %d entries", len(ids))
	return ids, nil
}

// scrapePage fetches one ministry's detail page, splits it into the
// overview and departments sections, and returns the structural
// hierarchy of departments and agencies found on it. The overview
// counts and description enrich the ministry entry as a side effect.
func (h *ministriesHandler) scrapePage(ctx context.Context, client Fetcher, ministryID string) (model.MinistryHierarchy, error) {
	h.mu.Lock()
	entry, ok := h.ministries[ministryID]
	h.mu.Unlock()
	if !ok {
		return model.MinistryHierarchy{}, fmt.Errorf("ministry %q not found in handler state", ministryID)
	}

	overviewPath := h.overviewFile(ministryID)
	departmentsPath := h.departmentsAgenciesFile(ministryID)
	pageURL := absoluteURL(h.seedURL, entry.MinistryURL)

	var overviewHTML, departmentsHTML string
	if fileio.Exists(overviewPath) && fileio.Exists(departmentsPath) {
		h.logger.Printf("ministries: page raw files already present for %s", ministryID)
		rawOverview, err := os.ReadFile(overviewPath)
		if err != nil {
			return model.MinistryHierarchy{}, err
		}
		rawDepartments, err := os.ReadFile(departmentsPath)
		if err != nil {
			return model.MinistryHierarchy{}, err
		}
		overviewHTML, departmentsHTML = string(rawOverview), string(rawDepartments)
	} else {
		html, err := client.Fetch(ctx, pageURL)
		if err != nil {
			return model.MinistryHierarchy{}, fmt.Errorf("scrape ministry page %s: %w", ministryID, err)
		}
		overviewHTML, departmentsHTML, err = extract.SplitMinistryPage(html)
		if err != nil {
			return model.MinistryHierarchy{}, fmt.Errorf("split ministry page %s: %w", ministryID, err)
		}
		if err := fileio.WriteRaw(overviewPath, []byte(overviewHTML)); err != nil {
			return model.MinistryHierarchy{}, err
		}
		if err := fileio.WriteRaw(departmentsPath, []byte(departmentsHTML)); err != nil {
			return model.MinistryHierarchy{}, err
		}
	}

	overview, err := extract.ParseMinistryOverview(overviewHTML)
	if err != nil {
		return model.MinistryHierarchy{}, fmt.Errorf("parse ministry overview %s: %w", ministryID, err)
	}
	departments, agencies, err := extract.ParseDepartmentsAgencies(departmentsHTML, ministryID, pageURL)
	if err != nil {
		return model.MinistryHierarchy{}, fmt.Errorf("parse ministry departments %s: %w", ministryID, err)
	}

	h.mu.Lock()
	entry.MinistryDescription = overview.Description
	entry.ReportedAgencyCount = overview.ReportedAgencyCount
	entry.ReportedServiceCount = overview.ReportedServiceCount
	h.ministries[ministryID] = entry
	for _, d := range departments {
		h.departments[d.DepartmentID] = d
	}
	for _, a := range agencies {
		h.pageAgencies[a.AgencyID] = a
	}
	h.mu.Unlock()

	return buildHierarchy(ministryID, departments, agencies), nil
}

// buildHierarchy shapes parsed departments and agencies into the
// structural form the scheduler merges, preserving page order.
func buildHierarchy(ministryID string, departments []extract.DepartmentEntry, agencies []extract.PageAgency) model.MinistryHierarchy {
	hierarchy := model.MinistryHierarchy{MinistryID: ministryID}
	for _, d := range departments {
		dept := model.DepartmentHierarchy{DepartmentID: d.DepartmentID}
		for _, a := range agencies {
			if a.DepartmentID == d.DepartmentID {
				dept.Agencies = append(dept.Agencies, model.AgencyRef{
					AgencyID:    a.AgencyID,
					ServicesURL: a.ServicesURL,
				})
			}
		}
		hierarchy.Departments = append(hierarchy.Departments, dept)
	}
	return hierarchy
}

// processPages re-validates the raw detail pages for the whole batch,
// restoring department and agency entities for any ministry whose
// processed state was lost. Any member failing fails the batch.
func (h *ministriesHandler) processPages(ctx context.Context, batch []model.MinistryPayload, workers int) ([]string, error) {
	g, _ := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for _, member := range batch {
		member := member
		g.Go(func() error {
			ministryID := member.MinistryID
			raw, err := os.ReadFile(h.departmentsAgenciesFile(ministryID))
			if err != nil {
				return fmt.Errorf("ministry %s raw page not available for processing: %w", ministryID, err)
			}
			h.mu.Lock()
			entry, ok := h.ministries[ministryID]
			h.mu.Unlock()
			if !ok {
				return fmt.Errorf("ministry %q not found in handler state", ministryID)
			}
			departments, agencies, err := extract.ParseDepartmentsAgencies(string(raw), ministryID, absoluteURL(h.seedURL, entry.MinistryURL))
			if err != nil {
				return fmt.Errorf("process ministry page %s: %w", ministryID, err)
			}
			h.mu.Lock()
			for _, d := range departments {
				h.departments[d.DepartmentID] = d
			}
			for _, a := range agencies {
				h.pageAgencies[a.AgencyID] = a
			}
			h.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(batch))
	for _, member := range batch {
		ids = append(ids, member.MinistryID)
	}
	h.logger.Printf("ministries: %d pages processed", len(ids))
	return ids, nil
}

func (h *ministriesHandler) scrapeServices(ctx context.Context, client Fetcher, payload model.ServicePayload) error {
	path := h.servicesFile(payload.MinistryID, payload.DepartmentID, payload.AgencyID)
	if fileio.Exists(path) {
		h.logger.Printf("ministries: services raw file already present for agency %s", payload.AgencyID)
		return nil
	}
	html, err := client.Fetch(ctx, absoluteURL(h.seedURL, payload.ServicesURL))
	if err != nil {
		return fmt.Errorf("scrape services for agency %s: %w", payload.AgencyID, err)
	}
	return fileio.WriteRaw(path, []byte(html))
}

// processServices parses every scraped services page in the batch and
// reports the processed agencies grouped by department. The grouping
// is built from the batch membership itself, so agencies listing no
// services still count as processed.
func (h *ministriesHandler) processServices(ctx context.Context, payload model.ServiceListPayload, workers int) (model.ServicesProcessed, error) {
	g, _ := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for _, member := range payload.Services {
		member := member
		g.Go(func() error {
			raw, err := os.ReadFile(h.servicesFile(member.MinistryID, member.DepartmentID, member.AgencyID))
			if err != nil {
				return fmt.Errorf("services raw file not available for agency %s: %w", member.AgencyID, err)
			}
			entries, err := extract.ParseServices(string(raw), member.MinistryID, member.DepartmentID, member.AgencyID)
			if err != nil {
				return fmt.Errorf("process services for agency %s: %w", member.AgencyID, err)
			}
			h.mu.Lock()
			for _, entry := range entries {
				h.services[entry.ServiceID] = entry
			}
			h.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.ServicesProcessed{}, err
	}

	departmentAgencies := make(map[string][]string)
	for _, member := range payload.Services {
		departmentAgencies[member.DepartmentID] = append(departmentAgencies[member.DepartmentID], member.AgencyID)
	}
	h.logger.Printf("ministries: services batch processed for ministry %s (%d agencies)", payload.MinistryID, len(payload.Services))
	return model.ServicesProcessed{
		MinistryID:         payload.MinistryID,
		DepartmentAgencies: departmentAgencies,
	}, nil
}

func (h *ministriesHandler) saveState() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, part := range []struct {
		path string
		data any
		size int
	}{
		{h.ministriesFile(), h.ministries, len(h.ministries)},
		{h.departmentsFile(), h.departments, len(h.departments)},
		{h.pageAgenciesFile(), h.pageAgencies, len(h.pageAgencies)},
		{h.servicesOutFile(), h.services, len(h.services)},
	} {
		if part.size == 0 {
			continue
		}
		if err := fileio.WriteJSON(part.path, part.data); err != nil {
			return err
		}
	}
	return nil
}

// absoluteURL resolves a possibly relative portal link against the
// seed URL's origin.
func absoluteURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

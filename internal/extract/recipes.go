package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseFAQ extracts question/answer pairs from the help page. Entries
// live in li elements with faq_ ids; the button holds the question and
// the sibling div the answer. Duplicate pairs collapse to one entry.
func ParseFAQ(html string) ([]FAQEntry, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []FAQEntry
	items := doc.Find(`li[id^="faq_"]`)
	items.Each(func(_ int, item *goquery.Selection) {
		btn := item.Find("button").First()
		if btn.Length() == 0 {
			return
		}
		question := NormaliseWS(btn.Text())

		answerDiv := btn.NextFiltered("div")
		if answerDiv.Length() == 0 {
			answerDiv = item.Find("div").First()
		}
		answer := ""
		if answerDiv.Length() > 0 {
			answer = NormaliseWS(answerDiv.Text())
		}

		id := StableID(question, answer)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		entries = append(entries, FAQEntry{FAQID: id, Question: question, Answer: answer})
	})

	if len(entries) == 0 {
		return nil, fmt.Errorf("no FAQ entries extracted from %d candidate items", items.Length())
	}
	return entries, nil
}

// ParseAgenciesList extracts agency cards from the agencies listing.
// Each card is an anchor wrapping the logo, name and description.
func ParseAgenciesList(html string) ([]AgencyEntry, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []AgencyEntry
	anchors := doc.Find("a")
	anchors.Each(func(_ int, item *goquery.Selection) {
		name := NormaliseWS(item.Find("h4").First().Text())
		nameHash := SHA256Hash(name)
		if nameHash == "" || seen[nameHash] {
			return
		}
		seen[nameHash] = true

		href, _ := item.Attr("href")
		logo, _ := item.Find("img").First().Attr("src")
		entries = append(entries, AgencyEntry{
			AgencyNameHash:    nameHash,
			AgencyName:        name,
			AgencyDescription: NormaliseWS(item.Find("p").First().Text()),
			LogoURL:           NormaliseURL(logo),
			AgencyURL:         NormaliseURL(href),
		})
	})

	if len(entries) == 0 {
		return nil, fmt.Errorf("no agency entries extracted from %d anchors", anchors.Length())
	}
	return entries, nil
}

// ParseMinistriesList extracts ministries from the national ministries
// page, in page order. The order matters: it fixes the position every
// downstream queue uses for this ministry.
func ParseMinistriesList(html string) ([]MinistryEntry, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []MinistryEntry
	doc.Find("a").Each(func(_ int, item *goquery.Selection) {
		name := NormaliseWS(item.Text())
		id := StableID(name)
		if id == "" || seen[id] {
			return
		}
		href, _ := item.Attr("href")
		if !strings.Contains(href, "/ministries/") {
			return
		}
		seen[id] = true
		entries = append(entries, MinistryEntry{
			MinistryID:   id,
			MinistryName: name,
			MinistryURL:  NormaliseURL(href),
		})
	})

	if len(entries) == 0 {
		return nil, fmt.Errorf("no ministry entries extracted")
	}
	return entries, nil
}

// SplitMinistryPage separates a ministry page into its overview
// section and the departments/agencies listboxes, as raw HTML. Either
// section missing means the page did not render fully and the fetch
// should be treated as failed.
func SplitMinistryPage(html string) (overview, departments string, err error) {
	doc, perr := parse(html)
	if perr != nil {
		return "", "", perr
	}

	overviewSel := doc.Find(`div.lg\:grid`).First()
	if overviewSel.Length() > 0 {
		overview, _ = goquery.OuterHtml(overviewSel)
	}

	var boxes []string
	doc.Find(`ul[role="listbox"]`).Each(func(_ int, s *goquery.Selection) {
		if h, herr := goquery.OuterHtml(s); herr == nil {
			boxes = append(boxes, h)
		}
	})
	departments = strings.Join(boxes, "\n")

	if strings.TrimSpace(overview) == "" || strings.TrimSpace(departments) == "" {
		return "", "", fmt.Errorf("ministry page missing overview or departments section")
	}
	return overview, departments, nil
}

// ParseMinistryOverview reads the reported counts and description from
// a ministry's overview section. Agencies come first in the dd tags,
// services second.
func ParseMinistryOverview(html string) (MinistryOverview, error) {
	doc, err := parse(html)
	if err != nil {
		return MinistryOverview{}, err
	}

	var out MinistryOverview
	dd := doc.Find("dd")
	if dd.Length() > 0 {
		if n, ok := ParseInt(dd.Eq(0).Text()); ok {
			out.ReportedAgencyCount = &n
		}
	}
	if dd.Length() > 1 {
		if n, ok := ParseInt(dd.Eq(1).Text()); ok {
			out.ReportedServiceCount = &n
		}
	}
	out.Description = NormaliseWS(doc.Find("article").First().Text())
	return out, nil
}

// ParseDepartmentsAgencies walks the listbox structure of a ministry
// page: one div per department, with a span naming it and nested
// anchors linking each agency's services page. Departments and
// agencies come back in page order.
func ParseDepartmentsAgencies(html, ministryID, ministryURL string) ([]DepartmentEntry, []PageAgency, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, nil, err
	}

	root := doc.Find(`ul[role="listbox"]`).First()
	if root.Length() == 0 {
		return nil, nil, nil
	}

	var departments []DepartmentEntry
	var agencies []PageAgency
	root.ChildrenFiltered("div").Each(func(_ int, block *goquery.Selection) {
		deptName := NormaliseWS(block.Find("span").First().Text())
		if deptName == "" {
			return
		}
		deptID := StableID(ministryID, deptName)

		observed := 0
		block.Find("ul a[href]").Each(func(_ int, a *goquery.Selection) {
			agencyName := NormaliseWS(a.Text())
			if agencyName == "" {
				return
			}
			href, _ := a.Attr("href")
			observed++
			agencies = append(agencies, PageAgency{
				AgencyID:       StableID(ministryID, deptID, agencyName),
				AgencyNameHash: SHA256Hash(agencyName),
				MinistryID:     ministryID,
				DepartmentID:   deptID,
				AgencyName:     agencyName,
				ServicesURL:    NormaliseURL(href),
			})
		})

		departments = append(departments, DepartmentEntry{
			DepartmentID:        deptID,
			MinistryID:          ministryID,
			DepartmentName:      deptName,
			ObservedAgencyCount: observed,
			DepartmentsURL:      departmentURL(block, ministryURL),
		})
	})
	return departments, agencies, nil
}

// departmentURL rebuilds a department's canonical URL from the first
// agency link's department query parameter. Ministries without one
// fall back to the ministry URL.
func departmentURL(block *goquery.Selection, ministryURL string) string {
	a := block.Find("ul a[href]").First()
	if a.Length() == 0 {
		return ministryURL
	}
	href, _ := a.Attr("href")
	u, err := url.Parse(NormaliseURL(href))
	if err != nil {
		return ministryURL
	}
	dq := u.Query().Get("department")
	if dq == "" {
		return ministryURL
	}
	return NormaliseURL(ministryURL + "?department=" + url.QueryEscape(dq))
}

// ParseServices extracts the services listed on an agency's services
// page. Pages can legitimately list none.
func ParseServices(html, ministryID, departmentID, agencyID string) ([]ServiceEntry, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []ServiceEntry
	doc.Find("a").Each(func(_ int, item *goquery.Selection) {
		name := NormaliseWS(item.Text())
		if name == "" {
			return
		}
		id := StableID(ministryID, departmentID, agencyID, name)
		if seen[id] {
			return
		}
		seen[id] = true
		href, _ := item.Attr("href")
		entries = append(entries, ServiceEntry{
			ServiceID:    id,
			MinistryID:   ministryID,
			DepartmentID: departmentID,
			AgencyID:     agencyID,
			ServiceName:  name,
			ServiceURL:   NormaliseURL(href),
		})
	})
	return entries, nil
}

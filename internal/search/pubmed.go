// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/cvintra-engine/internal/httputil"
	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// DefaultBaseURL is the NCBI E-utilities root.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// DefaultKeywords narrow a drug query to pharmacokinetic literature.
var DefaultKeywords = []string{"pharmacokinetics", "bioequivalence", "Cmax", "AUC"}

// recordURLBase is the PubMed landing page prefix for a PMID.
const recordURLBase = "https://pubmed.ncbi.nlm.nih.gov/"

// toolName identifies this client to NCBI.
const toolName = "cvintra-engine"

// PubMed fetches records from the NCBI E-utilities API. Every request,
// search or detail, goes through one rate-limited client so consecutive
// requests are spaced by the configured delay.
type PubMed struct {
	cfg    types.PubMedConfig
	client *httputil.Client
	log    *zap.Logger
}

// NewPubMed returns a PubMed client for cfg. Zero-valued settings take the
// package defaults.
func NewPubMed(cfg types.PubMedConfig, logger *zap.Logger) *PubMed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxIDs <= 0 {
		cfg.MaxIDs = 20
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 10
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &PubMed{
		cfg:    cfg,
		client: httputil.NewClient(hc, cfg.RequestDelay(), cfg.MaxRetries, logger),
		log:    logger,
	}
}

// BuildQuery combines a term with an OR-ed keyword filter:
// "term AND (k1 OR k2)". With no keywords the term is returned unchanged.
func BuildQuery(term string, keywords []string) string {
	term = strings.TrimSpace(term)
	var kws []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return term
	}
	return term + " AND (" + strings.Join(kws, " OR ") + ")"
}

// Search returns up to MaxRecords PMIDs for term in relevance order. An
// empty list with a nil error means nothing matched. A nil keywords slice
// uses the configured keywords.
func (p *PubMed) Search(ctx context.Context, term string, keywords []string) ([]string, error) {
	if keywords == nil {
		keywords = p.cfg.Keywords
	}
	params := p.baseParams()
	params.Set("term", BuildQuery(term, keywords))
	params.Set("retmax", strconv.Itoa(p.cfg.MaxIDs))
	params.Set("sort", "relevance")
	params.Set("retmode", "json")

	resp, err := p.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: esearch")
	}
	defer resp.Body.Close()

	var body esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "pubmed: decoding esearch response")
	}
	if body.Result.Error != "" {
		return nil, eris.Errorf("pubmed: esearch error: %s", body.Result.Error)
	}

	ids := body.Result.IDList
	if len(ids) > p.cfg.MaxRecords {
		ids = ids[:p.cfg.MaxRecords]
	}
	p.log.Debug("pubmed: search complete",
		zap.String("term", term), zap.Int("ids", len(ids)), zap.String("count", body.Result.Count))
	return ids, nil
}

// Fetch returns the record for one PMID.
func (p *PubMed) Fetch(ctx context.Context, id string) (types.Record, error) {
	params := p.baseParams()
	params.Set("id", id)
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")

	resp, err := p.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return types.Record{}, eris.Wrapf(err, "pubmed: efetch %s", id)
	}
	defer resp.Body.Close()

	var set pubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return types.Record{}, eris.Wrapf(err, "pubmed: parsing efetch response for %s", id)
	}
	if len(set.Articles) == 0 {
		return types.Record{}, eris.Errorf("pubmed: no article returned for %s", id)
	}
	return set.Articles[0].record(id), nil
}

func (p *PubMed) baseParams() url.Values {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("tool", toolName)
	if p.cfg.Email != "" {
		params.Set("email", p.cfg.Email)
	}
	if p.cfg.APIKey != "" {
		params.Set("api_key", p.cfg.APIKey)
	}
	return params
}

func (p *PubMed) get(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "creating request")
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
	}
	return resp, nil
}

// esearch JSON structures.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// efetch XML structures.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    markup `xml:"ArticleTitle"`
			Abstract struct {
				Texts []abstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []pubmedAuthor `xml:"AuthorList>Author"`
			PubDate struct {
				Year        string `xml:"Year"`
				MedlineDate string `xml:"MedlineDate"`
			} `xml:"Journal>JournalIssue>PubDate"`
			PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
		} `xml:"Article"`
		MeshHeadings []string `xml:"MeshHeadingList>MeshHeading>DescriptorName"`
	} `xml:"MedlineCitation"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

type pubmedAuthor struct {
	LastName       string `xml:"LastName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// markup captures element content including inline tags such as <i>.
type markup struct {
	Inner string `xml:",innerxml"`
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripMarkup removes inline tags, decodes entities and collapses whitespace.
func stripMarkup(inner string) string {
	s := tagPattern.ReplaceAllString(inner, "")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

func (a pubmedArticle) record(requestedID string) types.Record {
	c := a.Citation
	id := strings.TrimSpace(c.PMID)
	if id == "" {
		id = requestedID
	}

	var sections []string
	for _, t := range c.Article.Abstract.Texts {
		text := stripMarkup(t.Inner)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		sections = append(sections, text)
	}

	var authors []string
	for _, au := range c.Article.Authors {
		switch {
		case au.LastName != "":
			authors = append(authors, strings.TrimSpace(au.LastName+" "+au.Initials))
		case au.CollectiveName != "":
			authors = append(authors, au.CollectiveName)
		}
	}

	year := 0
	for _, s := range []string{c.Article.PubDate.Year, c.Article.PubDate.MedlineDate} {
		if m := yearPattern.FindString(s); m != "" {
			year, _ = strconv.Atoi(m)
			break
		}
	}

	return types.Record{
		ID:               id,
		Title:            stripMarkup(c.Article.Title.Inner),
		Abstract:         strings.Join(sections, "\n"),
		Authors:          authors,
		Year:             year,
		URL:              recordURLBase + id + "/",
		PublicationTypes: c.Article.PublicationTypes,
		MeshHeadings:     c.MeshHeadings,
	}
}

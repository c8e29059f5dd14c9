// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ArticleType classifies the kind of publication a record describes.
type ArticleType string

const (
	ArticleClinicalTrial ArticleType = "clinical_trial"
	ArticleReview        ArticleType = "review"
	ArticleObservational ArticleType = "observational"
	ArticleMethodology   ArticleType = "methodology"
	ArticleOther         ArticleType = "other"
)

// SubjectType classifies what the study was performed on.
type SubjectType string

const (
	SubjectHuman   SubjectType = "human"
	SubjectAnimal  SubjectType = "animal"
	SubjectInVitro SubjectType = "in_vitro"
)

// Record holds one bibliographic record fetched from the literature source.
// ArticleType and SubjectType are empty until the record is classified.
type Record struct {
	// ID is the source identifier (a PubMed PMID).
	ID string `json:"id" yaml:"id"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the article abstract with sections joined by blank lines.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists the authors in source order as "LastName Initials".
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year" yaml:"year"`

	// URL is the canonical landing page for the record.
	URL string `json:"url" yaml:"url"`

	// ArticleType is assigned by classification.
	ArticleType ArticleType `json:"article_type,omitempty" yaml:"article_type,omitempty"`

	// SubjectType is assigned by classification.
	SubjectType SubjectType `json:"subject_type,omitempty" yaml:"subject_type,omitempty"`

	// PublicationTypes lists the source's own publication type labels
	// (e.g. "Randomized Controlled Trial"). Used as a classification hint.
	PublicationTypes []string `json:"publication_types,omitempty" yaml:"publication_types,omitempty"`

	// MeshHeadings lists MeSH descriptor names attached to the record.
	MeshHeadings []string `json:"mesh_headings,omitempty" yaml:"mesh_headings,omitempty"`
}

// Text returns the title and abstract joined for extraction.
func (r Record) Text() string {
	switch {
	case r.Title == "":
		return r.Abstract
	case r.Abstract == "":
		return r.Title
	default:
		return r.Title + " " + r.Abstract
	}
}

// RecordView is the slim projection of a Record carried in query responses.
type RecordView struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Authors     []string    `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year        int         `json:"year" yaml:"year"`
	URL         string      `json:"url" yaml:"url"`
	ArticleType ArticleType `json:"article_type" yaml:"article_type"`
	SubjectType SubjectType `json:"subject_type" yaml:"subject_type"`
}

// View returns the slim projection of r.
func (r Record) View() RecordView {
	return RecordView{
		ID:          r.ID,
		Title:       r.Title,
		Authors:     r.Authors,
		Year:        r.Year,
		URL:         r.URL,
		ArticleType: r.ArticleType,
		SubjectType: r.SubjectType,
	}
}

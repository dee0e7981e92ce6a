// Package candidate defines the value objects flowing through a beam-search
// run: candidate IDs, prompt pairs, image artifacts, evaluations, and ranks.
package candidate

import "fmt"

// NoParent marks a candidate with no refinement parent (iteration-0 seeds).
const NoParent = -1

// TiedAtFloor annotates candidates collapsed into the floor equivalence class.
const TiedAtFloor = "tied_at_floor"

// ID identifies a candidate by iteration and local index within that iteration.
type ID struct {
	Iteration int
	Local     int
}

// String renders the ID in the canonical i{iteration}c{local} form.
func (id ID) String() string {
	return fmt.Sprintf("i%dc%d", id.Iteration, id.Local)
}

// Less orders IDs by iteration, then local index. Used for all rank tie-breaks.
func (id ID) Less(other ID) bool {
	if id.Iteration != other.Iteration {
		return id.Iteration < other.Iteration
	}
	return id.Local < other.Local
}

// Dimension is one of the two orthogonal prompt halves refined on alternating
// iterations: WHAT (content) and HOW (style).
type Dimension string

const (
	DimWhat Dimension = "what"
	DimHow  Dimension = "how"
)

// Other returns the opposite dimension.
func (d Dimension) Other() Dimension {
	if d == DimWhat {
		return DimHow
	}
	return DimWhat
}

// DimensionFor returns the dimension refined at the given iteration.
// Odd iterations refine content, even iterations refine style.
func DimensionFor(iteration int) Dimension {
	if iteration%2 == 1 {
		return DimWhat
	}
	return DimHow
}

// ImageMetadata carries provenance for a generated image.
type ImageMetadata struct {
	Model           string `json:"model,omitempty"`
	Size            string `json:"size,omitempty"`
	Seed            int64  `json:"seed,omitempty"`
	SafetyRephrased bool   `json:"safety_rephrased,omitempty"`
	OriginalPrompt  string `json:"original_prompt,omitempty"`
	RephrasedPrompt string `json:"rephrased_prompt,omitempty"`
}

// Image is a generated image artifact. At least one of URL or LocalPath is
// set; LocalPath is preferred for stable references.
type Image struct {
	URL       string        `json:"url,omitempty"`
	LocalPath string        `json:"local_path,omitempty"`
	Metadata  ImageMetadata `json:"metadata"`
}

// Usable reports whether the image carries a reference a ranker can use.
func (img Image) Usable() bool {
	return img.LocalPath != "" || img.URL != ""
}

// Ref returns the preferred reference for the image: LocalPath when present,
// otherwise URL.
func (img Image) Ref() string {
	if img.LocalPath != "" {
		return img.LocalPath
	}
	return img.URL
}

// Evaluation holds vision-provider scores for a candidate image.
// AlignmentScore is in [0,100]; AestheticScore is in [0,10].
type Evaluation struct {
	AlignmentScore float64 `json:"alignment_score"`
	AestheticScore float64 `json:"aesthetic_score"`
	Analysis       string  `json:"analysis,omitempty"`
	TokensUsed     int     `json:"tokens_used"`
}

// Ranking holds a candidate's position from comparative ranking. Rank 1 is best.
type Ranking struct {
	Rank   int    `json:"rank"`
	Reason string `json:"reason,omitempty"`
	Wins   int    `json:"wins,omitempty"`
}

// Candidate is one (prompt, image) attempt. It is created once by the
// pipeline and enriched by the ranker and global-rank assigner; downstream
// stages must not mutate a candidate another goroutine can still observe.
type Candidate struct {
	ID          ID          `json:"id"`
	ParentLocal int         `json:"parent_local"` // NoParent for iteration-0 seeds.
	Dimension   Dimension   `json:"dimension"`    // Refined dimension; empty for iteration-0 seeds, which expand both halves fresh.
	What        string      `json:"what"`
	How         string      `json:"how"`
	Combined    string      `json:"combined"`
	Image       Image       `json:"image"`
	Evaluation  *Evaluation `json:"evaluation,omitempty"`
	Ranking     *Ranking    `json:"ranking,omitempty"`
	TotalScore  float64     `json:"total_score,omitempty"` // Valid when Evaluation is non-nil.

	GlobalRank     int    `json:"global_rank,omitempty"` // 0 until assigned; >= 1 once ranked.
	GlobalRankNote string `json:"global_rank_note,omitempty"`
}

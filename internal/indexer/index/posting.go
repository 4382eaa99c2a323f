package index

// Posting records one document's occurrences of a term within a field.
type Posting struct {
	DocID     uint32 `json:"d"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p,omitempty"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string      `json:"t"`
	Postings PostingList `json:"p"`
}

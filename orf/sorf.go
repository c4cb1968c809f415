package orf

import "strconv"

// ShortORF is a named short ORF with 1-based inclusive coordinates
// in the transcript.
type ShortORF struct {
	ID           string
	Seq          string
	TranscriptID string
	StartAt      int
	EndAt        int
}

// ShortID returns the identifier of the n-th short ORF of a
// transcript.
func ShortID(transcriptID string, n int) string {
	return transcriptID + "_ORF" + strconv.Itoa(n)
}

// FilterAndName keeps ORFs not longer than maxLen and names them
// <transcriptID>_ORF<n>, n counting from 1 over the kept ORFs. The
// order of orfs is preserved.
func FilterAndName(orfs []CandidateORF, transcriptID string, maxLen int) []ShortORF {
	var sorfs []ShortORF
	for _, o := range orfs {
		if o.Len() > maxLen {
			continue
		}
		sorfs = append(sorfs, ShortORF{
			ID:           ShortID(transcriptID, len(sorfs)+1),
			Seq:          o.Seq,
			TranscriptID: transcriptID,
			StartAt:      o.Start + 1,
			EndAt:        o.Stop + 3,
		})
	}
	return sorfs
}

package docextract

import "github.com/ledongthuc/pdf"

// permExtractText is the "copy or extract text" bit of the /P entry.
const permExtractText = 1 << 4

// RestrictedText is returned in place of content for documents whose
// permissions forbid text extraction.
const RestrictedText = "This PDF does not allow text extraction."

func textExtractionPermitted(p int64) bool {
	return uint32(p)&permExtractText != 0
}

// extractionRestricted reports whether the document's encryption dictionary
// withholds the text extraction permission. Unencrypted documents and
// dictionaries without /P are unrestricted.
func extractionRestricted(r *pdf.Reader) (restricted bool) {
	defer func() {
		if recover() != nil {
			restricted = false
		}
	}()

	encrypt := r.Trailer().Key("Encrypt")
	if encrypt.IsNull() {
		return false
	}
	p := encrypt.Key("P")
	if p.Kind() != pdf.Integer {
		return false
	}
	return !textExtractionPermitted(p.Int64())
}

package docs

import "strings"

// Splitting defaults. Plain text is cut into chunks of roughly ChunkSize
// characters with ChunkOverlap carried between adjacent chunks.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order; the first one present in the text is used,
// falling through to finer-grained cuts for oversize fragments. The empty
// separator means a hard character cut.
var separators = []string{"\n\n", "\n", ". ", ", ", " ", ""}

// SplitMarkdown splits markdown text into sections at #, ## and ###
// headers. Each header stays with the content that follows it.
func SplitMarkdown(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		s := strings.TrimSpace(strings.Join(cur, "\n"))
		if s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if isHeader(line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

func isHeader(line string) bool {
	t := strings.TrimSpace(line)
	for _, p := range []string{"# ", "## ", "### "} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// SplitText splits plain text into overlapping chunks, preferring to cut at
// paragraph, line, sentence and word boundaries before resorting to hard
// character cuts.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return splitWith(text, size, overlap, separators)
}

func splitWith(text string, size, overlap int, seps []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= size {
		return []string{strings.TrimSpace(text)}
	}

	sep, remaining := pickSeparator(text, seps)
	if sep == "" {
		return hardCut(text, size, overlap)
	}

	var atoms []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if len(part) > size {
			atoms = append(atoms, splitWith(part, size, overlap, remaining)...)
		} else {
			atoms = append(atoms, part)
		}
	}
	return merge(atoms, size, overlap)
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, s := range seps {
		if s == "" {
			return "", nil
		}
		if strings.Contains(text, s) {
			return s, seps[i+1:]
		}
	}
	return "", nil
}

func hardCut(text string, size, overlap int) []string {
	var out []string
	step := size - overlap
	for i := 0; i < len(text); i += step {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[i:end])
		if end == len(text) {
			break
		}
	}
	return out
}

// merge packs atoms into chunks up to size, seeding each new chunk with the
// overlap tail of the previous one.
func merge(atoms []string, size, overlap int) []string {
	var out []string
	var cur strings.Builder
	for _, a := range atoms {
		if cur.Len() > 0 && cur.Len()+len(a) > size {
			chunk := strings.TrimSpace(cur.String())
			if chunk != "" {
				out = append(out, chunk)
			}
			tail := cur.String()
			if len(tail) > overlap {
				tail = tail[len(tail)-overlap:]
			}
			cur.Reset()
			cur.WriteString(tail)
		}
		cur.WriteString(a)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

package commands

import (
	"fmt"
	"strconv"
	"strings"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/sourcemap"
	"git.home.luguber.info/inful/bundlekit/internal/vlq"
)

// VLQCmd implements the 'vlq' command group.
type VLQCmd struct {
	Encode VLQEncodeCmd `cmd:"" help:"Encode integers as one VLQ string"`
	Decode VLQDecodeCmd `cmd:"" help:"Decode a VLQ string into integers"`
}

// VLQEncodeCmd implements 'vlq encode'.
type VLQEncodeCmd struct {
	Values []int `arg:"" help:"Integers to encode"`
}

func (c *VLQEncodeCmd) Run(g *Global) error {
	_, err := fmt.Fprintln(stdout(g), vlq.EncodeVLQs(c.Values))
	return err
}

// VLQDecodeCmd implements 'vlq decode'.
type VLQDecodeCmd struct {
	Text string `arg:"" help:"VLQ string to decode"`
}

func (c *VLQDecodeCmd) Run(g *Global) error {
	values, err := vlq.DecodeVLQs(c.Text)
	if err != nil {
		return ferrors.CodecError("invalid VLQ string").WithCause(err).Build()
	}
	_, err = fmt.Fprintln(stdout(g), joinInts(values, " "))
	return err
}

// MappingsCmd implements the 'mappings' command group.
type MappingsCmd struct {
	Encode MappingsEncodeCmd `cmd:"" help:"Encode mappings given as ';'-separated lines of ','-separated segments"`
	Decode MappingsDecodeCmd `cmd:"" help:"Decode a mappings string"`
}

// MappingsEncodeCmd implements 'mappings encode'. Segment fields are
// separated by spaces, e.g. "0 0 0 0,6 0 0 6;".
type MappingsEncodeCmd struct {
	Text string `arg:"" help:"Mappings in plain integer form"`
}

func (c *MappingsEncodeCmd) Run(g *Global) error {
	m, err := parsePlainMappings(c.Text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout(g), vlq.EncodeMappings(m))
	return err
}

// MappingsDecodeCmd implements 'mappings decode'.
type MappingsDecodeCmd struct {
	Text string `arg:"" help:"Mappings string"`
}

func (c *MappingsDecodeCmd) Run(g *Global) error {
	m, err := vlq.DecodeMappings(c.Text)
	if err != nil {
		return ferrors.CodecError("invalid mappings").WithCause(err).Build()
	}
	_, err = fmt.Fprintln(stdout(g), formatPlainMappings(m))
	return err
}

// SourcemapCmd implements the 'sourcemap' command group.
type SourcemapCmd struct {
	Inspect SourcemapInspectCmd `cmd:"" help:"Print the decoded mappings of a source map file"`
}

// SourcemapInspectCmd implements 'sourcemap inspect'.
type SourcemapInspectCmd struct {
	Path string `arg:"" type:"existingfile" help:"Source map file"`
}

func (c *SourcemapInspectCmd) Run(g *Global) error {
	sm, err := sourcemap.Read(c.Path)
	if err != nil {
		return ferrors.CodecError("invalid source map").WithCause(err).WithContext("path", c.Path).Build()
	}
	m, err := sm.Decode()
	if err != nil {
		return ferrors.CodecError("invalid source map mappings").WithCause(err).WithContext("path", c.Path).Build()
	}
	w := stdout(g)
	_, _ = fmt.Fprintf(w, "file: %s\n", sm.File)
	_, _ = fmt.Fprintf(w, "sources: %s\n", strings.Join(sm.Sources, ", "))
	_, _ = fmt.Fprintf(w, "lines: %d\n", len(m))
	for i, line := range m {
		if len(line) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%d: %s\n", i, formatLine(line)); err != nil {
			return err
		}
	}
	return nil
}

func parsePlainMappings(text string) (vlq.Mappings, error) {
	rawLines := strings.Split(text, ";")
	m := make(vlq.Mappings, 0, len(rawLines))
	for li, rawLine := range rawLines {
		line := vlq.Line{}
		if strings.TrimSpace(rawLine) != "" {
			for si, rawSeg := range strings.Split(rawLine, ",") {
				fields := strings.Fields(rawSeg)
				if len(fields) == 0 {
					return nil, ferrors.CodecError(fmt.Sprintf("line %d segment %d is empty", li, si)).Build()
				}
				seg := make(vlq.Segment, 0, len(fields))
				for _, f := range fields {
					n, err := strconv.Atoi(f)
					if err != nil {
						return nil, ferrors.CodecError(fmt.Sprintf("line %d segment %d", li, si)).WithCause(err).Build()
					}
					seg = append(seg, n)
				}
				if !seg.Valid() {
					return nil, ferrors.CodecError(fmt.Sprintf("line %d segment %d has %d fields, want 1, 4 or 5", li, si, len(seg))).
						WithCause(vlq.ErrFieldCount).Build()
				}
				line = append(line, seg)
			}
		}
		m = append(m, line)
	}
	return m, nil
}

func formatPlainMappings(m vlq.Mappings) string {
	lines := make([]string, len(m))
	for i, line := range m {
		lines[i] = formatLine(line)
	}
	return strings.Join(lines, ";")
}

func formatLine(line vlq.Line) string {
	segs := make([]string, len(line))
	for i, seg := range line {
		segs[i] = joinInts(seg, " ")
	}
	return strings.Join(segs, ",")
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

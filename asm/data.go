package asm

import (
	"strconv"
	"strings"

	"github.com/generin0/vasm/diag"
)

// MaxDataSection mirrors the original assembler's fixed data buffer size.
const MaxDataSection = 256

var escapeByte = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'0':  0,
	'\\': '\\',
	'"':  '"',
}

// dataSection accumulates data-section bytes. Only pass 1 fills it
// (and registers data labels provisionally, against
// initialDataStart); pass 2 skips data lines and keeps these bytes.
type dataSection struct {
	buf []byte
}

func newDataSection() *dataSection {
	return &dataSection{buf: make([]byte, 0, MaxDataSection)}
}

func (d *dataSection) emit(sink *diag.Sink, line int, b byte) {
	if len(d.buf) >= MaxDataSection {
		sink.Push(diag.DataOverflow, diag.Fatal, line, 0, "", "data section overflow (max %d bytes)", MaxDataSection)
		return
	}
	d.buf = append(d.buf, b)
}

// isDirective reports whether a mnemonic-only line toggles the
// current section, consuming it if so.
func isDirective(text string) (directive string, ok bool) {
	t := strings.TrimSpace(text)
	if t == ".data" || t == ".text" {
		return t, true
	}
	return "", false
}

// parseDataLine parses a "name: payload" data definition, registers
// the label during pass 1 (at dataStartAddr plus the number of data
// bytes before this line), and appends the resulting bytes to the
// section buffer.
func (a *Assembler) parseDataLine(text string, line int) {
	idx := strings.Index(text, ":")
	if idx < 0 {
		a.sink.Push(diag.InvalidOperand, diag.Error, line, 0, text, "expected \"name: value\" in data section")
		return
	}
	name := strings.TrimSpace(text[:idx])
	payload := strings.TrimSpace(text[idx+1:])
	if name == "" {
		a.sink.Push(diag.LabelEmpty, diag.Error, line, 0, text, "empty data label name")
		return
	}

	addr := a.dataStartAddr + uint16(len(a.data.buf))
	if a.pass == 1 {
		a.labels.Add(a.sink, line, name, addr, true)
	}

	switch {
	case strings.HasPrefix(payload, "\""):
		a.parseQuotedString(payload, line)
	case payload == "":
		a.sink.Push(diag.OperandMissing, diag.Error, line, 0, text, "data definition %q has no payload", name)
	default:
		a.parseNumericList(payload, line)
	}
}

func (a *Assembler) parseQuotedString(payload string, line int) {
	end := strings.LastIndex(payload, "\"")
	if end <= 0 {
		a.sink.Push(diag.InvalidOperand, diag.Error, line, 0, payload, "unterminated string literal")
		return
	}
	inner := payload[1:end]
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++
			esc, ok := escapeByte[inner[i]]
			if !ok {
				a.sink.Push(diag.EscapeUnknown, diag.Warning, line, 0, payload, "unknown escape sequence \\%c", inner[i])
				a.data.emit(a.sink, line, '\\')
				a.data.emit(a.sink, line, inner[i])
				continue
			}
			a.data.emit(a.sink, line, esc)
			continue
		}
		a.data.emit(a.sink, line, c)
	}
	a.data.emit(a.sink, line, 0)
}

func (a *Assembler) parseNumericList(payload string, line int) {
	for _, tok := range strings.Split(payload, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := parseNumber(tok)
		if err != nil {
			a.sink.Push(diag.InvalidOperand, diag.Error, line, 0, payload, "invalid numeric literal %q", tok)
			continue
		}
		a.data.emit(a.sink, line, byte(v&0xFF))
	}
}

// parseNumber parses a decimal, 0x-hex, or 0b-binary literal.
func parseNumber(tok string) (int64, error) {
	switch {
	case strings.HasPrefix(tok, "0x"), strings.HasPrefix(tok, "0X"):
		return strconv.ParseInt(tok[2:], 16, 64)
	case strings.HasPrefix(tok, "0b"), strings.HasPrefix(tok, "0B"):
		return strconv.ParseInt(tok[2:], 2, 64)
	default:
		return strconv.ParseInt(tok, 10, 64)
	}
}

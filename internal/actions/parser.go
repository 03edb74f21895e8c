package actions

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/metrics"
)

// Marker tags understood in assistant replies.
const (
	ToolCallOpen  = "[TOOL_CALL]"
	ToolCallClose = "[/TOOL_CALL]"
	ActionOpen    = "[ACTION]"
	ActionClose   = "[/ACTION]"
)

var (
	markerRe       = regexp.MustCompile(`(?s)\[TOOL_CALL\](.*?)\[/TOOL_CALL\]|\[ACTION\](.*?)\[/ACTION\]`)
	danglingOpenRe = regexp.MustCompile(`(?s)\[(?:TOOL_CALL|ACTION)\].*$`)
	strayCloseRe   = regexp.MustCompile(`\[/(?:TOOL_CALL|ACTION)\]`)
	blankLinesRe   = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
	innerSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
)

type currentPayload struct {
	ID         string                 `json:"id"`
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence *float64               `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
}

type legacyPayload struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	Confidence *float64               `json:"confidence"`
}

// ParseResult is the cleaned reply plus every well-formed request in order
type ParseResult struct {
	DisplayText string
	Requests    []*ActionRequest
	Malformed   int
}

// Parser extracts action markers from assistant replies
type Parser struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// NewParser creates a parser. metrics may be nil.
func NewParser(logger *zap.Logger, m *metrics.Metrics) *Parser {
	return &Parser{
		logger:  logger,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// Parse strips every marker from reply and decodes the well-formed ones.
// Malformed payloads are logged and skipped; they never abort the others.
func (p *Parser) Parse(reply string) *ParseResult {
	result := &ParseResult{}

	for _, m := range markerRe.FindAllStringSubmatch(reply, -1) {
		var (
			req *ActionRequest
			err error
		)
		if strings.HasPrefix(m[0], ToolCallOpen) {
			req, err = p.decodeCurrent(m[1])
		} else {
			req, err = p.decodeLegacy(m[2])
		}

		if err != nil {
			result.Malformed++
			p.metrics.RecordParseFailure()
			p.logger.Warn("Dropping malformed action marker",
				zap.Error(err),
				zap.String("payload", truncate(m[0], 200)))
			continue
		}

		p.metrics.RecordActionParsed(string(req.Encoding))
		result.Requests = append(result.Requests, req)
	}

	text := markerRe.ReplaceAllString(reply, "")
	if loc := danglingOpenRe.FindStringIndex(text); loc != nil {
		result.Malformed++
		p.metrics.RecordParseFailure()
		p.logger.Warn("Dropping unterminated action marker", zap.String("payload", truncate(text[loc[0]:], 200)))
		text = text[:loc[0]]
	}
	text = strayCloseRe.ReplaceAllString(text, "")
	result.DisplayText = cleanText(text)

	return result
}

func (p *Parser) decodeCurrent(raw string) (*ActionRequest, error) {
	var payload currentPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, err
	}
	if payload.Tool == "" {
		return nil, errMissingField("tool")
	}

	req := &ActionRequest{
		ID:         payload.ID,
		Capability: payload.Tool,
		Parameters: payload.Parameters,
		Reasoning:  payload.Reasoning,
		Encoding:   EncodingCurrent,
	}
	// a current-format request without confidence is treated as zero and
	// will not pass the guardrail
	if payload.Confidence != nil {
		req.Confidence = *payload.Confidence
	}
	p.fillDefaults(req)
	return req, nil
}

func (p *Parser) decodeLegacy(raw string) (*ActionRequest, error) {
	var payload legacyPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, err
	}
	if payload.Type == "" {
		return nil, errMissingField("type")
	}

	req := &ActionRequest{
		Capability: payload.Type,
		Parameters: payload.Data,
		Confidence: LegacyDefaultConfidence,
		Encoding:   EncodingLegacy,
	}
	if payload.Confidence != nil {
		req.Confidence = *payload.Confidence
	}
	p.fillDefaults(req)
	return req, nil
}

func (p *Parser) fillDefaults(req *ActionRequest) {
	if req.ID == "" {
		req.ID = p.newID()
	}
	if req.Parameters == nil {
		req.Parameters = map[string]interface{}{}
	}
}

func cleanText(s string) string {
	s = innerSpaceRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type missingFieldError string

func (e missingFieldError) Error() string {
	return "marker payload missing " + string(e)
}

func errMissingField(name string) error {
	return missingFieldError(name)
}

package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for script syntax
// ---------------------------------------------------------------------------

// Parser parses script source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	problems  []Problem
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token. Lexical errors are recorded and
// skipped.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenError {
		p.problemAt(p.peekToken.Pos, "%s", p.peekToken.Literal)
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.problemAt(p.curToken.Pos, format, args...)
}

func (p *Parser) problemAt(pos Position, format string, args ...interface{}) {
	p.problems = append(p.problems, Problem{
		Line:   pos.Line,
		Column: pos.Column,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// Problems returns accumulated parse errors.
func (p *Parser) Problems() []Problem {
	return p.problems
}

// Errors returns accumulated parse errors as text.
func (p *Parser) Errors() []string {
	out := make([]string, len(p.problems))
	for i, pr := range p.problems {
		out[i] = pr.String()
	}
	return out
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseKeywordSend()
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	// Check for return
	if p.curTokenIs(TokenCaret) {
		return p.parseReturn()
	}

	// Parse expression
	expr := p.parseKeywordSend()
	if expr == nil {
		return nil
	}

	// Check for assignment
	if assign, ok := expr.(*Assignment); ok {
		return &ExprStmt{SpanVal: assign.SpanVal, Expr: assign}
	}

	return &ExprStmt{SpanVal: expr.Span(), Expr: expr}
}

// ParseStatements parses multiple statements separated by periods.
func (p *Parser) ParseStatements() []Stmt {
	var stmts []Stmt

	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenRBrace) {
		stmt := p.ParseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}

		// Consume period if present
		if p.curTokenIs(TokenPeriod) {
			p.nextToken()
		} else {
			break
		}
	}

	return stmts
}

// parseTemporaries parses | temp1 temp2 |
func (p *Parser) parseTemporaries() []string {
	p.nextToken() // consume |
	var temps []string
	for p.curTokenIs(TokenIdentifier) {
		temps = append(temps, p.curToken.Literal)
		p.nextToken()
	}
	if !p.expect(TokenBar) {
		return nil
	}
	return temps
}

// parseReturn parses ^expr
func (p *Parser) parseReturn() *Return {
	startPos := p.curToken.Pos
	p.nextToken() // consume ^

	value := p.parseKeywordSend()
	if value == nil {
		return nil
	}

	return &Return{
		SpanVal: MakeSpan(startPos, value.Span().End),
		Value:   value,
	}
}

// ---------------------------------------------------------------------------
// Expression parsing (message precedence)
// ---------------------------------------------------------------------------

// parseKeywordSend parses keyword message sends (lowest precedence).
func (p *Parser) parseKeywordSend() Expr {
	receiver := p.parseBinarySendNoCascade()
	if receiver == nil {
		return nil
	}

	var result Expr

	// Check for keyword message
	if p.curTokenIs(TokenKeyword) {
		result = p.parseKeywordMessage(receiver)
	} else {
		result = receiver
	}

	// Check for cascade AFTER the full keyword/binary message
	if p.curTokenIs(TokenSemicolon) {
		return p.parseCascade(result)
	}

	return result
}

// parseKeywordMessage parses a keyword message with given receiver.
func (p *Parser) parseKeywordMessage(receiver Expr) Expr {
	startPos := receiver.Span().Start

	var selector strings.Builder
	var keywords []string
	var args []Expr

	for p.curTokenIs(TokenKeyword) {
		keyword := p.curToken.Literal
		keywords = append(keywords, keyword)
		selector.WriteString(keyword)
		p.nextToken()

		// Parse argument (binary level, not keyword to avoid ambiguity)
		// Use NoCascade version to prevent semicolons from being consumed as cascades
		arg := p.parseBinarySendNoCascade()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
	}

	return &KeywordMessage{
		SpanVal:   MakeSpan(startPos, p.curToken.Pos),
		Receiver:  receiver,
		Selector:  selector.String(),
		Keywords:  keywords,
		Arguments: args,
	}
}

// parseBinarySendNoCascade parses binary message sends without cascade handling.
// Used when parsing keyword message arguments where cascades shouldn't be triggered.
func (p *Parser) parseBinarySendNoCascade() Expr {
	left := p.parseUnarySend()
	if left == nil {
		return nil
	}

	// Parse binary messages (left associative)
	// Note: TokenBar (|) is also a binary selector in expression context
	for p.curTokenIs(TokenBinarySelector) || p.curTokenIs(TokenBar) {
		selector := p.curToken.Literal
		p.nextToken()

		right := p.parseUnarySend()
		if right == nil {
			return nil
		}

		left = &BinaryMessage{
			SpanVal:  MakeSpan(left.Span().Start, right.Span().End),
			Receiver: left,
			Selector: selector,
			Argument: right,
		}
	}

	return left
}

// parseCascade parses cascaded messages.
func (p *Parser) parseCascade(first Expr) Expr {
	// first is already the first message send result
	// We need to extract the receiver from first

	var receiver Expr
	var messages []CascadedMessage

	// Convert first to a cascaded message
	switch msg := first.(type) {
	case *UnaryMessage:
		receiver = msg.Receiver
		messages = append(messages, CascadedMessage{
			Type:     UnaryMsg,
			Selector: msg.Selector,
		})
	case *BinaryMessage:
		receiver = msg.Receiver
		messages = append(messages, CascadedMessage{
			Type:      BinaryMsg,
			Selector:  msg.Selector,
			Arguments: []Expr{msg.Argument},
		})
	case *KeywordMessage:
		receiver = msg.Receiver
		messages = append(messages, CascadedMessage{
			Type:      KeywordMsg,
			Selector:  msg.Selector,
			Keywords:  msg.Keywords,
			Arguments: msg.Arguments,
		})
	default:
		// Not a message, can't cascade
		p.errorf("cascade requires a message send")
		return first
	}

	// Parse remaining cascaded messages
	for p.curTokenIs(TokenSemicolon) {
		p.nextToken() // consume ;

		msg := p.parseCascadedMessage()
		if msg != nil {
			messages = append(messages, *msg)
		}
	}

	return &Cascade{
		SpanVal:  MakeSpan(first.Span().Start, p.curToken.Pos),
		Receiver: receiver,
		Messages: messages,
	}
}

// parseCascadedMessage parses a single cascaded message (without receiver).
func (p *Parser) parseCascadedMessage() *CascadedMessage {
	switch {
	case p.curTokenIs(TokenIdentifier):
		// Unary message
		selector := p.curToken.Literal
		p.nextToken()
		return &CascadedMessage{
			Type:     UnaryMsg,
			Selector: selector,
		}

	case p.curTokenIs(TokenBinarySelector):
		// Binary message
		selector := p.curToken.Literal
		p.nextToken()
		arg := p.parseUnarySend()
		if arg == nil {
			return nil
		}
		return &CascadedMessage{
			Type:      BinaryMsg,
			Selector:  selector,
			Arguments: []Expr{arg},
		}

	case p.curTokenIs(TokenKeyword):
		// Keyword message
		var selector strings.Builder
		var keywords []string
		var args []Expr
		for p.curTokenIs(TokenKeyword) {
			keyword := p.curToken.Literal
			keywords = append(keywords, keyword)
			selector.WriteString(keyword)
			p.nextToken()
			// Use NoCascade version to prevent semicolons from being consumed as cascades
			arg := p.parseBinarySendNoCascade()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
		}
		return &CascadedMessage{
			Type:      KeywordMsg,
			Selector:  selector.String(),
			Keywords:  keywords,
			Arguments: args,
		}

	default:
		p.errorf("expected message in cascade")
		return nil
	}
}

// parseUnarySend parses unary message sends (highest precedence).
func (p *Parser) parseUnarySend() Expr {
	primary := p.parsePrimary()
	if primary == nil {
		return nil
	}

	// Parse chain of unary messages
	for p.curTokenIs(TokenIdentifier) && !p.peekTokenIs(TokenAssign) && !p.peekTokenIs(TokenColon) {
		selector := p.curToken.Literal
		p.nextToken()

		primary = &UnaryMessage{
			SpanVal:  MakeSpan(primary.Span().Start, p.curToken.Pos),
			Receiver: primary,
			Selector: selector,
		}
	}

	return primary
}

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	switch p.curToken.Type {
	case TokenInteger:
		return p.parseInteger()
	case TokenFloat:
		return p.parseFloat()
	case TokenString:
		return p.parseString()
	case TokenSymbol:
		return p.parseSymbol()
	case TokenCharacter:
		return p.parseCharacter()
	case TokenHash:
		return p.parseHashLiteral()
	case TokenHashLParen:
		return p.parseLiteralArray()
	case TokenLParen:
		return p.parseParenExpr()
	case TokenLBracket:
		return p.parseBlock()
	case TokenLBrace:
		return p.parseDynamicArray()
	case TokenIdentifier:
		return p.parseIdentifier()
	case TokenNil:
		return p.parseNil()
	case TokenTrue:
		return p.parseTrue()
	case TokenFalse:
		return p.parseFalse()
	case TokenEOF:
		p.errorf("unexpected end of input")
		return nil
	default:
		p.errorf("unexpected %s", describe(p.curToken))
		return nil
	}
}

// describe renders a token for error messages.
func describe(t Token) string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenKeyword, TokenBinarySelector:
		return fmt.Sprintf("'%s'", t.Literal)
	}
	return fmt.Sprintf("'%s'", t.Type)
}

// ---------------------------------------------------------------------------
// Literal parsing
// ---------------------------------------------------------------------------

func (p *Parser) parseInteger() *IntLiteral {
	pos := p.curToken.Pos
	literal := p.curToken.Literal

	// Handle radix notation (16rFF)
	var value int64
	var err error
	if idx := strings.Index(literal, "r"); idx > 0 {
		radixStr := literal[:idx]
		digits := literal[idx+1:]
		radix, _ := strconv.ParseInt(radixStr, 10, 64)
		value, err = strconv.ParseInt(digits, int(radix), 64)
	} else {
		value, err = strconv.ParseInt(literal, 10, 64)
	}

	if err != nil {
		p.errorf("invalid integer: %s", literal)
		value = 0
	}

	p.nextToken()
	return &IntLiteral{
		SpanVal: MakeSpan(pos, p.curToken.Pos),
		Value:   value,
	}
}

func (p *Parser) parseFloat() *FloatLiteral {
	pos := p.curToken.Pos
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errorf("invalid float: %s", p.curToken.Literal)
		value = 0
	}
	p.nextToken()
	return &FloatLiteral{
		SpanVal: MakeSpan(pos, p.curToken.Pos),
		Value:   value,
	}
}

func (p *Parser) parseString() *StringLiteral {
	pos := p.curToken.Pos
	value := p.curToken.Literal
	p.nextToken()
	return &StringLiteral{
		SpanVal: MakeSpan(pos, p.curToken.Pos),
		Value:   value,
	}
}

func (p *Parser) parseSymbol() *SymbolLiteral {
	pos := p.curToken.Pos
	value := p.curToken.Literal
	p.nextToken()
	return &SymbolLiteral{
		SpanVal: MakeSpan(pos, p.curToken.Pos),
		Value:   value,
	}
}

func (p *Parser) parseCharacter() *CharLiteral {
	pos := p.curToken.Pos
	value := []rune(p.curToken.Literal)[0]
	p.nextToken()
	return &CharLiteral{
		SpanVal: MakeSpan(pos, p.curToken.Pos),
		Value:   value,
	}
}

func (p *Parser) parseHashLiteral() Expr {
	// We have a lone # - could be followed by ( for array or other things
	// This case shouldn't normally occur as lexer handles #( specially
	pos := p.curToken.Pos
	p.nextToken()
	if p.curTokenIs(TokenLParen) {
		return p.parseLiteralArray()
	}
	p.errorf("unexpected # token")
	return &SymbolLiteral{SpanVal: MakeSpan(pos, pos), Value: ""}
}

func (p *Parser) parseLiteralArray() *ArrayLiteral {
	pos := p.curToken.Pos
	p.nextToken() // consume #( or (

	var elements []Expr
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		elem := p.parseLiteralArrayElement()
		if elem != nil {
			elements = append(elements, elem)
		}
	}

	p.expect(TokenRParen)

	return &ArrayLiteral{
		SpanVal:  MakeSpan(pos, p.curToken.Pos),
		Elements: elements,
	}
}

func (p *Parser) parseLiteralArrayElement() Expr {
	switch p.curToken.Type {
	case TokenInteger:
		return p.parseInteger()
	case TokenFloat:
		return p.parseFloat()
	case TokenString:
		return p.parseString()
	case TokenSymbol:
		return p.parseSymbol()
	case TokenCharacter:
		return p.parseCharacter()
	case TokenIdentifier:
		// In literal arrays, bare identifiers are symbols
		pos := p.curToken.Pos
		value := p.curToken.Literal
		p.nextToken()
		return &SymbolLiteral{SpanVal: MakeSpan(pos, p.curToken.Pos), Value: value}
	case TokenHashLParen, TokenLParen:
		return p.parseLiteralArray()
	case TokenNil:
		return p.parseNil()
	case TokenTrue:
		return p.parseTrue()
	case TokenFalse:
		return p.parseFalse()
	default:
		p.errorf("unexpected token in literal array: %s", p.curToken.Type)
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseParenExpr() Expr {
	p.nextToken() // consume (
	expr := p.parseKeywordSend()
	p.expect(TokenRParen)
	return expr
}

func (p *Parser) parseDynamicArray() *DynamicArray {
	pos := p.curToken.Pos
	p.nextToken() // consume {

	var elements []Expr
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		elem := p.parseKeywordSend()
		if elem != nil {
			elements = append(elements, elem)
		}
		if p.curTokenIs(TokenPeriod) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRBrace) {
			break
		}
	}

	p.expect(TokenRBrace)

	return &DynamicArray{
		SpanVal:  MakeSpan(pos, p.curToken.Pos),
		Elements: elements,
	}
}

func (p *Parser) parseBlock() *Block {
	pos := p.curToken.Pos
	p.nextToken() // consume [

	// Parse block parameters :x :y | with optional <Type> annotations
	var params []string
	var spans []Span
	var types []*TypeRef
	for p.curTokenIs(TokenColon) {
		p.nextToken() // consume :
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name after :")
			break
		}
		start := p.curToken.Pos
		params = append(params, p.curToken.Literal)
		p.nextToken()
		spans = append(spans, MakeSpan(start, p.curToken.Pos))
		types = append(types, p.parseTypeAnnotation())
	}

	// Consume | after parameters
	if len(params) > 0 {
		if !p.expect(TokenBar) {
			return nil
		}
	}

	// Parse temporaries | temp1 temp2 |
	var temps []string
	if p.curTokenIs(TokenBar) {
		temps = p.parseTemporaries()
	}

	// Parse statements
	stmts := p.ParseStatements()

	p.expect(TokenRBracket)

	return &Block{
		SpanVal:    MakeSpan(pos, p.curToken.Pos),
		Parameters: params,
		ParamSpans: spans,
		ParamTypes: types,
		Temps:      temps,
		Statements: stmts,
	}
}

// parseTypeAnnotation parses an optional <TypeName> after a block parameter.
func (p *Parser) parseTypeAnnotation() *TypeRef {
	if !p.curTokenIs(TokenBinarySelector) || p.curToken.Literal != "<" {
		return nil
	}
	start := p.curToken.Pos
	p.nextToken() // consume <
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected type name after <")
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	if !p.curTokenIs(TokenBinarySelector) || p.curToken.Literal != ">" {
		p.errorf("expected > after type name %s", name)
		return nil
	}
	p.nextToken() // consume >
	return &TypeRef{SpanVal: MakeSpan(start, p.curToken.Pos), Name: name}
}

func (p *Parser) parseIdentifier() Expr {
	pos := p.curToken.Pos
	name := p.curToken.Literal
	p.nextToken()

	// Check for assignment
	if p.curTokenIs(TokenAssign) {
		p.nextToken() // consume :=
		value := p.parseKeywordSend()
		if value == nil {
			return nil
		}
		return &Assignment{
			SpanVal:  MakeSpan(pos, value.Span().End),
			Variable: name,
			Value:    value,
		}
	}

	return &Variable{
		SpanVal: MakeSpan(pos, p.curToken.Pos),
		Name:    name,
	}
}

func (p *Parser) parseNil() *NilLiteral {
	pos := p.curToken.Pos
	p.nextToken()
	return &NilLiteral{SpanVal: MakeSpan(pos, p.curToken.Pos)}
}

func (p *Parser) parseTrue() *TrueLiteral {
	pos := p.curToken.Pos
	p.nextToken()
	return &TrueLiteral{SpanVal: MakeSpan(pos, p.curToken.Pos)}
}

func (p *Parser) parseFalse() *FalseLiteral {
	pos := p.curToken.Pos
	p.nextToken()
	return &FalseLiteral{SpanVal: MakeSpan(pos, p.curToken.Pos)}
}

// ---------------------------------------------------------------------------
// Script parsing
// ---------------------------------------------------------------------------

// ParseScript parses a complete script file. The last statement must be a
// bare block with one parameter: the entry block the host invokes each tick.
// Everything before it is setup.
//
//	| count |
//	count := 0.
//	[:program <PersistentProgram> |
//	    count := count + 1.
//	    program counter: count ]
func (p *Parser) ParseScript() *Script {
	startPos := p.curToken.Pos
	s := &Script{}

	if p.curTokenIs(TokenBar) {
		s.UnitVars = p.parseTemporaries()
	}

	stmts := p.ParseStatements()
	if !p.curTokenIs(TokenEOF) {
		p.errorf("unexpected %s; expected '.' or end of input", describe(p.curToken))
	}

	if len(stmts) > 0 {
		if es, ok := stmts[len(stmts)-1].(*ExprStmt); ok {
			if blk, ok := es.Expr.(*Block); ok {
				s.Entry = blk
				stmts = stmts[:len(stmts)-1]
			}
		}
	}
	s.Setup = stmts

	if s.Entry == nil {
		if len(p.problems) == 0 {
			p.errorf("script must end with an entry block such as [:program | ...]")
		}
	} else if len(s.Entry.Parameters) != 1 {
		p.problemAt(s.Entry.Span().Start, "entry block must take exactly one parameter, the host; it takes %d", len(s.Entry.Parameters))
	}

	s.SpanVal = MakeSpan(startPos, p.curToken.Pos)
	return s
}

// ParseScript parses source as a script file.
func ParseScript(source string) (*Script, []Problem) {
	p := NewParser(source)
	s := p.ParseScript()
	return s, p.Problems()
}

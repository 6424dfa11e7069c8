package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an
// AST.
//
// Grammar:
//
//	program     = statement* EOF
//	statement   = funcDecl | varDecl | assignStmt | ifStmt | whileStmt
//	            | forStmt | returnStmt | printStmt | readStmt | block
//	            | exprStmt
//	funcDecl    = "def" IDENTIFIER "(" params ")" (":" type)? block
//	params      = [ type IDENTIFIER ("," type IDENTIFIER)* ]
//	varDecl     = type IDENTIFIER ("=" expression)? ";"
//	assignStmt  = IDENTIFIER "=" expression ";"
//	ifStmt      = "if" "(" expression ")" block ("else" (block | ifStmt))?
//	whileStmt   = "while" "(" expression ")" block
//	forStmt     = "for" "(" varDecl expression ";" forPost ")" block
//	forPost     = IDENTIFIER "=" expression | expression
//	returnStmt  = "return" expression? ";"
//	printStmt   = "print" "(" expression ")" ";"
//	readStmt    = "read" "(" IDENTIFIER ")" ";"
//	exprStmt    = expression ";"
//	expression  = logicalOr
//	logicalOr   = logicalAnd ("||" logicalAnd)*
//	logicalAnd  = equality ("&&" equality)*
//	equality    = relational (("==" | "!=") relational)*
//	relational  = additive (("<" | ">" | "<=" | ">=") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = ("-" | "!") unary | primary
//	primary     = INTEGER | FLOAT | STRING | "true" | "false"
//	            | IDENTIFIER ("(" args ")")? | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token
// appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	lineIdx := tok.Pos.Line - 1 // Lines are 1-based

	snippet := ""
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return &SyntaxError{
		Msg:     fmt.Sprintf(format, args...),
		Pos:     tok.Pos,
		Snippet: snippet,
	}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+1]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an
// error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// isTypeToken reports whether tt starts a variable declaration.
func isTypeToken(tt TokenType) bool {
	switch tt {
	case INT_TYPE, FLOAT_TYPE, STRING_TYPE, BOOL_TYPE:
		return true
	}
	return false
}

//  Statements

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch {
	case tok.Type == DEF:
		return p.parseFuncDecl()
	case isTypeToken(tok.Type):
		return p.parseVarDecl()
	case tok.Type == IF:
		return p.parseIf()
	case tok.Type == WHILE:
		return p.parseWhile()
	case tok.Type == FOR:
		return p.parseFor()
	case tok.Type == RETURN:
		return p.parseReturn()
	case tok.Type == PRINT:
		return p.parsePrint()
	case tok.Type == READ:
		return p.parseRead()
	case tok.Type == LBRACE:
		return p.parseBlock()
	case tok.Type == IDENTIFIER && p.peekNext().Type == ASSIGN:
		return p.parseAssign()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseFuncDecl() (Stmt, error) {
	kw := p.advance() // def
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var params []Param
	for p.peek().Type != RPAREN {
		if len(params) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, err
			}
		}
		typeTok := p.advance()
		pt := typeForToken(typeTok.Type)
		if pt == TypeInvalid || pt == TypeVoid {
			return nil, p.fmtError(typeTok, "expected parameter type, got %s (%q)", typeTok.Type, typeTok.Lexeme)
		}
		pname, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: pname.Lexeme, Type: pt, Pos: pname.Pos})
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	// Optional return annotation; functions return int when it is omitted.
	ret := TypeInt
	if p.peek().Type == COLON {
		p.advance()
		retTok := p.advance()
		ret = typeForToken(retTok.Type)
		if ret == TypeInvalid {
			return nil, p.fmtError(retTok, "expected return type, got %s (%q)", retTok.Type, retTok.Lexeme)
		}
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDecl{
		stmtInfo: stmtInfo{Pos: kw.Pos},
		Name:     name.Lexeme,
		Params:   params,
		RetType:  ret,
		Body:     body,
	}, nil
}

func (p *Parser) parseVarDecl() (*VarDecl, error) {
	typeTok := p.advance()
	declType := typeForToken(typeTok.Type)
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}

	var init Expr
	if p.peek().Type == ASSIGN {
		p.advance()
		init, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &VarDecl{
		stmtInfo: stmtInfo{Pos: typeTok.Pos},
		Name:     name.Lexeme,
		DeclType: declType,
		Init:     init,
	}, nil
}

func (p *Parser) parseAssign() (Stmt, error) {
	stmt, err := p.parseAssignNoSemi()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseAssignNoSemi() (*AssignStmt, error) {
	name := p.advance() // IDENTIFIER
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &AssignStmt{
		stmtInfo: stmtInfo{Pos: name.Pos},
		Name:     name.Lexeme,
		Value:    value,
	}, nil
}

func (p *Parser) parseBlock() (*BlockStmt, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	var stmts []Stmt
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return nil, p.fmtError(open, "unclosed block")
		}
		if p.peek().Type == DEF {
			return nil, p.fmtError(p.peek(), "nested function declarations are not allowed")
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.advance() // }
	return &BlockStmt{stmtInfo: stmtInfo{Pos: open.Pos}, Stmts: stmts}, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	kw := p.advance() // if
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elseBody Stmt
	if p.peek().Type == ELSE {
		p.advance()
		if p.peek().Type == IF {
			elseBody, err = p.parseIf()
		} else {
			elseBody, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{
		stmtInfo:  stmtInfo{Pos: kw.Pos},
		Condition: cond,
		Body:      body,
		ElseBody:  elseBody,
	}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	kw := p.advance() // while
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{stmtInfo: stmtInfo{Pos: kw.Pos}, Condition: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	kw := p.advance() // for
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if !isTypeToken(p.peek().Type) {
		return nil, p.fmtError(p.peek(), "for initializer must be a declaration")
	}
	init, err := p.parseVarDecl() // consumes its own ';'
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	var post Stmt
	if p.peek().Type == IDENTIFIER && p.peekNext().Type == ASSIGN {
		post, err = p.parseAssignNoSemi()
	} else {
		var expr Expr
		expr, err = p.parseExpression()
		if err == nil {
			post = &ExprStmt{stmtInfo: stmtInfo{Pos: expr.ExprPos()}, Expr: expr}
		}
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{
		stmtInfo: stmtInfo{Pos: kw.Pos},
		Init:     init,
		Cond:     cond,
		Post:     post,
		Body:     body,
	}, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	kw := p.advance() // return
	if p.peek().Type == SEMICOLON {
		p.advance()
		return &ReturnStmt{stmtInfo: stmtInfo{Pos: kw.Pos}}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{stmtInfo: stmtInfo{Pos: kw.Pos}, Expr: expr}, nil
}

func (p *Parser) parsePrint() (Stmt, error) {
	kw := p.advance() // print
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &PrintStmt{stmtInfo: stmtInfo{Pos: kw.Pos}, Expr: expr}, nil
}

func (p *Parser) parseRead() (Stmt, error) {
	kw := p.advance() // read
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReadStmt{stmtInfo: stmtInfo{Pos: kw.Pos}, Name: name.Lexeme}, nil
}

func (p *Parser) parseExprStmt() (Stmt, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{stmtInfo: stmtInfo{Pos: expr.ExprPos()}, Expr: expr}, nil
}

//  Expressions

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseLogicalOr()
}

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (Expr, error) {
	expr, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == OR_LOGICAL {
		op := p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		expr = &LogicalExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (Expr, error) {
	expr, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == AND_LOGICAL {
		op := p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		expr = &LogicalExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == EQUALS || p.peek().Type == NOT_EQ {
		op := p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseRelational handles <, >, <= and >=
func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == LESS || p.peek().Type == GREATER ||
		p.peek().Type == LESS_EQ || p.peek().Type == GREATER_EQ {
		op := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		op := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseMultiplicative handles *, / and %
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == STAR || p.peek().Type == SLASH || p.peek().Type == PERCENT {
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseUnary handles prefix - and !
func (p *Parser) parseUnary() (Expr, error) {
	if p.peek().Type == MINUS || p.peek().Type == NOT {
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{exprInfo: exprInfo{Pos: op.Pos}, Op: op.Type, Right: right}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.advance()
	switch tok.Type {
	case INTEGER:
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.fmtError(tok, "integer literal out of range: %s", tok.Lexeme)
		}
		return &IntLit{exprInfo: exprInfo{Pos: tok.Pos}, Value: v}, nil
	case FLOAT:
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, p.fmtError(tok, "float literal out of range: %s", tok.Lexeme)
		}
		return &FloatLit{exprInfo: exprInfo{Pos: tok.Pos}, Value: v}, nil
	case STRING:
		return &StringLit{exprInfo: exprInfo{Pos: tok.Pos}, Value: tok.Lexeme}, nil
	case TRUE:
		return &BoolLit{exprInfo: exprInfo{Pos: tok.Pos}, Value: true}, nil
	case FALSE:
		return &BoolLit{exprInfo: exprInfo{Pos: tok.Pos}, Value: false}, nil
	case IDENTIFIER:
		if p.peek().Type == LPAREN {
			return p.parseCall(tok)
		}
		return &VarRef{exprInfo: exprInfo{Pos: tok.Pos}, Name: tok.Lexeme}, nil
	case LPAREN:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.fmtError(tok, "unexpected token %s (%q)", tok.Type, tok.Lexeme)
	}
}

// parseCall parses the argument list of name(...). The opening paren is
// still at p.peek().
func (p *Parser) parseCall(name Token) (Expr, error) {
	p.advance() // (
	var args []Expr
	for p.peek().Type != RPAREN {
		if len(args) > 0 {
			if _, err := p.expect(COMMA); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.advance() // )
	return &CallExpr{exprInfo: exprInfo{Pos: name.Pos}, Name: name.Lexeme, Args: args}, nil
}

// Parse builds the AST for a whole program. rawSource is used only for
// error snippets.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	var stmts []Stmt
	for p.peek().Type != EOF {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return &Program{Stmts: stmts}, nil
}

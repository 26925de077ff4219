package wisp

import "strconv"

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxParams   = 255
	maxArgs     = 255
)

type funcKind int

const (
	kindScript funcKind = iota
	kindLambda
)

type localVar struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueDesc struct {
	index   byte
	isLocal bool
}

// compileFrame is one entry of the compiler's implicit stack of
// compilation scopes (spec.md §4.5, §9 design note "compiler state as
// implicit stack of frames"). lambdaObj is the Obj under construction
// for this frame; it becomes a constant in the enclosing frame's chunk
// only once the lambda form finishes compiling, so until then it is a
// GC root reachable only through the compiler itself.
type compileFrame struct {
	enclosing *compileFrame
	kind      funcKind
	lambdaObj  *Obj
	locals     []localVar
	upvalues   []upvalueDesc
	scopeDepth int
}

func newCompileFrame(enclosing *compileFrame, kind funcKind, heap *Heap) *compileFrame {
	f := &compileFrame{enclosing: enclosing, kind: kind, lambdaObj: heap.NewLambda()}
	// Slot 0 is reserved for the callee itself (spec.md §4.6.1); no
	// identifier can ever resolve to it since its name is empty.
	f.locals = append(f.locals, localVar{name: "", depth: 0})
	return f
}

func (f *compileFrame) chunk() *Chunk { return f.lambdaObj.Lambda().Chunk }

// Compiler turns a token stream into a compiled top-level Lambda.
// Grounded on original_source/src/compiler.c, an almost-complete draft
// of this exact design; every stub left in that draft (atom(), the
// literal-list cons count, the variadic-lambda arity) is resolved here
// per SPEC_FULL.md §4.5.
type Compiler struct {
	scanner *Scanner
	heap    *Heap
	pool    *AtomPool

	prev, curr Token
	panicMode  bool
	hadError   bool
	errors     []*ParseError

	current *compileFrame
}

// Compile compiles source into a top-level Lambda ready for execution.
// hadError reports whether any parse error occurred; the caller should
// not run the returned lambda when it is true (spec.md §7
// CompileLimitError discipline).
func Compile(source string, heap *Heap, pool *AtomPool) (*Obj, bool, []*ParseError) {
	c := &Compiler{scanner: NewScanner(source), heap: heap, pool: pool}
	c.current = newCompileFrame(nil, kindScript, heap)
	heap.SetCompiler(c)

	c.advance()
	for !c.match(TokenEOF) {
		c.sexp(false)
	}
	c.emitOp(OpReturn)

	// heap.compiler is left pointing at this (now finished) compiler
	// rather than cleared here: the caller still needs the returned
	// lambda kept alive as a GC root up until it roots it some other way
	// (wrapping it in a closure on the VM stack), and an extra harmless
	// root until then is safer than a window with none.
	return c.current.lambdaObj, c.hadError, c.errors
}

// markRoots marks every lambda currently under construction, innermost
// frame first, including every enclosing frame still mid-compile
// (spec.md §3 "Roots": "compiler temporaries").
func (c *Compiler) markRoots(h *Heap) {
	for f := c.current; f != nil; f = f.enclosing {
		h.markObj(f.lambdaObj)
	}
}

// --- token stream helpers (advance/consume/check/match), named and
// shaped after the teacher's base_parser.go quartet. ---

func (c *Compiler) advance() {
	c.prev = c.curr
	for {
		c.curr = c.scanner.Next()
		if c.curr.Kind != TokenError {
			break
		}
		c.errorAtCurrent(c.curr.Lexeme)
	}
}

func (c *Compiler) check(kind TokenKind) bool { return c.curr.Kind == kind }

func (c *Compiler) match(kind TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind TokenKind, msg string) {
	if c.curr.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAt(tok Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	// Reporting (to stderr) is the CLI's job — see interpret.go, which
	// collects every ParseError raised during a compile and lets the
	// caller decide how to surface them (REPL vs. file-run exit codes).
	c.errors = append(c.errors, &ParseError{
		Line:    tok.Line,
		AtEnd:   tok.Kind == TokenEOF,
		Lexeme:  tok.Lexeme,
		Message: msg,
	})
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.curr, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) synchronize() {
	c.panicMode = false

	for c.curr.Kind != TokenEOF {
		if c.prev.Kind == TokenRightParen || isPrimitiveToken(c.curr.Kind) {
			return
		}
		c.advance()
	}
}

func isPrimitiveToken(k TokenKind) bool {
	switch k {
	case TokenDefine, TokenLambda, TokenQuoteWord, TokenCons, TokenCar, TokenCdr:
		return true
	default:
		return false
	}
}

// --- emission helpers ---

func (c *Compiler) emitByte(b byte) { c.current.chunk().Write(b, c.prev.Line) }

func (c *Compiler) emitOp(op Opcode) { c.emitByte(byte(op)) }

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *Compiler) makeConstant(v Value) byte {
	idx, err := c.current.chunk().AddConstant(v)
	if err != nil {
		c.error("Too many constants in one chunk")
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v Value) {
	c.emitBytes(byte(OpConstant), c.makeConstant(v))
}

func (c *Compiler) identifierConstant(name string) byte {
	atom := c.pool.Intern([]byte(name))
	return c.makeConstant(atom)
}

// --- locals / upvalues ---

func (c *Compiler) addLocal(name string) {
	if len(c.current.locals) >= maxLocals {
		c.error("Too many local variables in this function")
		return
	}
	c.current.locals = append(c.current.locals, localVar{name: name, depth: -1})
}

func (c *Compiler) declareVariable(name string) {
	if c.current.scopeDepth == 0 {
		return
	}

	locals := c.current.locals
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.depth != -1 && l.depth < c.current.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope")
		}
	}

	c.addLocal(name)
}

func (c *Compiler) defineVariable(global byte) {
	if c.current.scopeDepth > 0 {
		c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
		return
	}
	c.emitBytes(byte(OpDefineGlobal), global)
}

func (c *Compiler) readIdentifier(msg string) byte {
	c.consume(TokenIdentifier, msg)
	name := c.prev.Lexeme
	c.declareVariable(name)

	if c.current.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func resolveLocal(f *compileFrame, c *Compiler, name string) int {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			if f.locals[i].depth == -1 {
				c.error("Can't read a variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

func addUpvalue(f *compileFrame, c *Compiler, index byte, isLocal bool) int {
	for i, uv := range f.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}

	if len(f.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function")
		return 0
	}

	f.upvalues = append(f.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	f.lambdaObj.Lambda().UpvalueCount = len(f.upvalues)
	return len(f.upvalues) - 1
}

func resolveUpvalue(f *compileFrame, c *Compiler, name string) int {
	if f.enclosing == nil {
		return -1
	}

	if local := resolveLocal(f.enclosing, c, name); local != -1 {
		f.enclosing.locals[local].isCaptured = true
		return addUpvalue(f, c, byte(local), true)
	}

	if up := resolveUpvalue(f.enclosing, c, name); up != -1 {
		return addUpvalue(f, c, byte(up), false)
	}

	return -1
}

// --- grammar ---

func (c *Compiler) sexp(quoted bool) {
	switch {
	case c.match(TokenIdentifier):
		if quoted {
			c.atomLiteral()
		} else {
			c.identifier()
		}
	case c.match(TokenNumber):
		c.number()
	case c.match(TokenQuote):
		c.sexp(true)
	case c.match(TokenLeftParen):
		if quoted {
			c.list()
		} else {
			c.callOrPrimitive()
		}
	default:
		c.errorAtCurrent("Unexpected token")
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) atomLiteral() {
	atom := c.pool.Intern([]byte(c.prev.Lexeme))
	c.emitConstant(atom)
}

func (c *Compiler) identifier() {
	name := c.prev.Lexeme

	var getOp Opcode
	var arg int

	if local := resolveLocal(c.current, c, name); local != -1 {
		getOp, arg = OpGetLocal, local
	} else if up := resolveUpvalue(c.current, c, name); up != -1 {
		getOp, arg = OpGetUpvalue, up
	} else {
		getOp, arg = OpGetGlobal, int(c.identifierConstant(name))
	}

	c.emitBytes(byte(getOp), byte(arg))
}

func (c *Compiler) number() {
	n, err := strconv.ParseFloat(c.prev.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal")
		return
	}
	c.emitConstant(NumVal(n))
}

// list compiles a quoted literal list (spec.md §4.5.2). The resolved
// reading: after pushing n element values and one tail value (implicit
// Nil or an explicit dotted tail), emit exactly n OP_CONS — uniformly,
// whether the list is proper or dotted.
func (c *Compiler) list() {
	switch {
	case c.check(TokenRightParen):
		c.emitConstant(Nil)
	case c.match(TokenDot):
		c.sexp(true)
	default:
		n := 0
		for !c.check(TokenRightParen) && !c.check(TokenDot) && !c.check(TokenEOF) {
			c.sexp(true)
			n++
		}

		if c.match(TokenDot) {
			c.sexp(true)
		} else {
			c.emitConstant(Nil)
		}

		for i := 0; i < n; i++ {
			c.emitOp(OpCons)
		}
	}

	c.consume(TokenRightParen, "Expect ')' at the end of a list")
}

func (c *Compiler) callOrPrimitive() {
	switch {
	case c.check(TokenRightParen):
		c.errorAtCurrent("Expect function to call")
	case isPrimitiveToken(c.curr.Kind):
		c.primitive()
	default:
		c.call()
	}

	c.consume(TokenRightParen, "Expect ')' at the end of a list")
}

func (c *Compiler) primitive() {
	switch {
	case c.match(TokenDefine):
		c.defineForm()
	case c.match(TokenLambda):
		c.lambdaForm()
	case c.match(TokenQuoteWord):
		c.sexp(true)
	case c.match(TokenCons):
		c.sexp(false)
		c.sexp(false)
		c.emitOp(OpCons)
	case c.match(TokenCar):
		c.sexp(false)
		c.emitOp(OpCar)
	case c.match(TokenCdr):
		c.sexp(false)
		c.emitOp(OpCdr)
	default:
		c.errorAtCurrent("Unknown primitive")
	}
}

func (c *Compiler) defineForm() {
	global := c.readIdentifier("Expect identifier after 'define'")
	c.sexp(false)
	c.defineVariable(global)
}

func (c *Compiler) lambdaForm() {
	inner := newCompileFrame(c.current, kindLambda, c.heap)
	inner.scopeDepth = 1
	outer := c.current
	c.current = inner

	lam := inner.lambdaObj.Lambda()

	if c.match(TokenLeftParen) {
		for !c.check(TokenRightParen) && !c.check(TokenDot) && !c.check(TokenEOF) {
			lam.Arity++
			if lam.Arity > maxParams {
				c.errorAtCurrent("Can't have more than 255 parameters")
			}

			param := c.readIdentifier("Expect parameter name")
			c.defineVariable(param)
		}

		if c.match(TokenDot) {
			param := c.readIdentifier("Expect parameter list name")
			c.defineVariable(param)
			lam.HasParamList = true
			lam.Arity++
		}

		c.consume(TokenRightParen, "Expect ')' at the end of a parameter list")
	} else {
		param := c.readIdentifier("Expect parameter list name")
		c.defineVariable(param)
		lam.HasParamList = true
		lam.Arity = 1
	}

	c.sexp(false)
	c.emitOp(OpReturn)

	c.current = outer

	constIdx := c.makeConstant(ObjVal(inner.lambdaObj))
	c.emitBytes(byte(OpClosure), constIdx)

	for _, uv := range inner.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *Compiler) call() {
	c.sexp(false)

	argCount := 0
	for !c.check(TokenRightParen) && !c.check(TokenDot) && !c.check(TokenEOF) {
		c.sexp(false)
		if argCount == maxArgs {
			c.error("Can't have more than 255 arguments")
		}
		argCount++
	}

	op := OpCall
	if c.match(TokenDot) {
		op = OpDotCall
		c.sexp(false)
	}

	c.emitBytes(byte(op), byte(argCount))
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/condohub/condofee/internal/client"
	"github.com/condohub/condofee/internal/client/api"
	"github.com/condohub/condofee/internal/client/expiry"
	"github.com/condohub/condofee/internal/client/session"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

// ErrExit is returned by Execute for exit and quit
var ErrExit = errors.New("exit")

// Prompter asks the user for a missing value
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

// Shell executes condoctl command lines against the API
type Shell struct {
	client  *client.Client
	manager *session.Manager
	api     *api.API
	prompt  Prompter
	out     io.Writer
	pretty  bool
	logger  *zap.Logger
}

func NewShell(c *client.Client, manager *session.Manager, prompt Prompter, out io.Writer, pretty bool, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		client:  c,
		manager: manager,
		api:     api.New(c),
		prompt:  prompt,
		out:     out,
		pretty:  pretty,
		logger:  logger,
	}
}

// Params are the key=value arguments of a command line
type Params map[string]string

func parseParams(tokens []string) (Params, error) {
	params := Params{}
	for _, token := range tokens {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid param: %s", token)
		}
		params[parts[0]] = parts[1]
	}
	return params, nil
}

// Execute runs one command line
func (s *Shell) Execute(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	s.logger.Debug("command", zap.String("name", tokens[0]))

	switch tokens[0] {
	case "exit", "quit":
		return ErrExit
	case "help":
		s.printHelp()
		return nil
	case "login":
		return s.login(ctx, tokens[1:])
	case "register":
		return s.register(ctx, tokens[1:])
	case "logout":
		return s.logout(ctx)
	case "whoami":
		return s.whoami()
	case "token":
		if len(tokens) < 2 || tokens[1] != "show" {
			return fmt.Errorf("usage: token show")
		}
		return s.showToken(ctx)
	case "me":
		return s.me(ctx, tokens[1:])
	case "pay":
		return s.pay(ctx, tokens[1:])
	}

	res, ok := s.api.Resource(tokens[0])
	if !ok {
		return fmt.Errorf("unknown command: %s (try help)", tokens[0])
	}
	if len(tokens) < 2 {
		return fmt.Errorf("usage: %s list|get|create|update|delete", tokens[0])
	}
	params, err := parseParams(tokens[2:])
	if err != nil {
		return err
	}
	return s.resource(ctx, res, tokens[1], params)
}

func (s *Shell) require(params Params, name string, secret bool) (string, error) {
	if v := params[name]; v != "" {
		return v, nil
	}
	if s.prompt == nil {
		return "", fmt.Errorf("missing %s", name)
	}
	v, err := s.prompt.Prompt(name, secret)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return v, nil
}

func (s *Shell) login(ctx context.Context, args []string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	email, err := s.require(params, "email", false)
	if err != nil {
		return err
	}
	password, err := s.require(params, "password", true)
	if err != nil {
		return err
	}

	u, err := s.manager.Login(ctx, email, password)
	if err != nil {
		return err
	}
	s.printf("logged in as %s (%s)\n", u.FullName, u.Role)
	return nil
}

func (s *Shell) register(ctx context.Context, args []string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	in := session.RegisterInput{Phone: params["phone"]}
	if in.FullName, err = s.require(params, "fullName", false); err != nil {
		return err
	}
	if in.Email, err = s.require(params, "email", false); err != nil {
		return err
	}
	if in.Password, err = s.require(params, "password", true); err != nil {
		return err
	}

	u, err := s.manager.Register(ctx, in)
	if err != nil {
		return err
	}
	s.printf("welcome, %s\n", u.FullName)
	return nil
}

func (s *Shell) logout(ctx context.Context) error {
	if err := s.manager.Logout(ctx); err != nil {
		s.printf("logged out locally (server said: %v)\n", err)
		return nil
	}
	s.printf("logged out\n")
	return nil
}

func (s *Shell) whoami() error {
	u := s.manager.State().User()
	if u == nil {
		s.printf("not logged in\n")
		return nil
	}
	return s.render(u)
}

func (s *Shell) showToken(ctx context.Context) error {
	pair := s.client.Tokens().Get(ctx)
	if pair.AccessToken == "" {
		s.printf("access: <empty>\n")
	} else {
		state := "fresh"
		if claims, err := expiry.Decode(pair.AccessToken); err != nil {
			state = "undecodable"
		} else if claims.ExpiresAt != nil {
			state = "expires " + claims.ExpiresAt.Time.Local().Format("2006-01-02 15:04:05")
		}
		s.printf("access: %s (%s)\n", mask(pair.AccessToken), state)
	}
	if pair.RefreshToken == "" {
		s.printf("refresh: <empty>\n")
	} else {
		s.printf("refresh: %s\n", mask(pair.RefreshToken))
	}
	return nil
}

func mask(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}

func (s *Shell) me(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: me profile|invoices|notifications")
	}
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	page, err := pageOf(params)
	if err != nil {
		return err
	}

	switch args[0] {
	case "profile":
		u, err := s.manager.FetchProfile(ctx)
		if err != nil {
			return err
		}
		return s.render(u)
	case "invoices":
		rows, err := s.api.MyInvoices(ctx, page)
		if err != nil {
			return err
		}
		return s.render(rows)
	case "notifications":
		rows, err := s.api.MyNotifications(ctx, page)
		if err != nil {
			return err
		}
		return s.render(rows)
	}
	return fmt.Errorf("usage: me profile|invoices|notifications")
}

func (s *Shell) pay(ctx context.Context, args []string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	invoice, err := strconv.ParseInt(params["invoice"], 10, 64)
	if err != nil {
		return fmt.Errorf("usage: pay invoice=<id> amount=<n> method=<card|cash|transfer>")
	}
	amount, err := strconv.ParseFloat(params["amount"], 64)
	if err != nil {
		return fmt.Errorf("amount must be a number")
	}
	method := params["method"]
	if method == "" {
		method = "transfer"
	}

	row, err := s.api.Pay(ctx, invoice, amount, method)
	if err != nil {
		return err
	}
	return s.render(row)
}

func (s *Shell) resource(ctx context.Context, res *api.Resource[api.Record], action string, params Params) error {
	switch action {
	case "list":
		page, err := pageOf(params)
		if err != nil {
			return err
		}
		rows, err := res.List(ctx, page)
		if err != nil {
			return err
		}
		return s.render(rows)
	case "get":
		id, err := idOf(params)
		if err != nil {
			return err
		}
		row, err := res.Get(ctx, id)
		if err != nil {
			return err
		}
		return s.render(row)
	case "create":
		row, err := res.Create(ctx, body(params))
		if err != nil {
			return err
		}
		return s.render(row)
	case "update":
		id, err := idOf(params)
		if err != nil {
			return err
		}
		delete(params, "id")
		row, err := res.Update(ctx, id, body(params))
		if err != nil {
			return err
		}
		return s.render(row)
	case "delete":
		id, err := idOf(params)
		if err != nil {
			return err
		}
		if err := res.Delete(ctx, id); err != nil {
			return err
		}
		s.printf("deleted %s/%d\n", strings.TrimPrefix(res.Path, "/"), id)
		return nil
	}
	return fmt.Errorf("unknown action %q, use list|get|create|update|delete", action)
}

func idOf(params Params) (int64, error) {
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("id=<n> is required")
	}
	return id, nil
}

func pageOf(params Params) (api.Page, error) {
	var page api.Page
	var err error
	if v := params["limit"]; v != "" {
		if page.Limit, err = strconv.Atoi(v); err != nil {
			return page, fmt.Errorf("limit must be a number")
		}
	}
	if v := params["offset"]; v != "" {
		if page.Offset, err = strconv.Atoi(v); err != nil {
			return page, fmt.Errorf("offset must be a number")
		}
	}
	return page, nil
}

// body turns key=value params into a JSON object, typing numbers, booleans
// and null
func body(params Params) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = scalar(v)
	}
	return out
}

func scalar(v string) interface{} {
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	// Phone numbers and codes keep their leading zero or plus sign
	if strings.HasPrefix(v, "+") || (len(v) > 1 && v[0] == '0' && v[1] != '.') {
		return v
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func (s *Shell) render(v interface{}) error {
	var data []byte
	var err error
	if s.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	s.printf("%s\n", data)
	return nil
}

// Describe formats an error for the terminal
func Describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("error: %s (HTTP %d)", apiErr.Msg, apiErr.Status)
	}
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("error: server answered HTTP %d without an envelope", httpErr.Status)
	}
	return fmt.Sprintf("error: %v", err)
}

func (s *Shell) printHelp() {
	names := api.Names()
	sort.Strings(names)
	s.printf("session:   login [email=..] [password=..] | register fullName=.. email=.. [phone=..] | logout | whoami | token show\n")
	s.printf("self:      me profile|invoices|notifications [limit=n offset=n] | pay invoice=<id> amount=<n> [method=..]\n")
	s.printf("resources: <name> list [limit=n offset=n] | get id=n | create k=v.. | update id=n k=v.. | delete id=n\n")
	s.printf("           names: %s\n", strings.Join(names, ", "))
	s.printf("system:    help | exit\n")
}

func (s *Shell) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aichat.dev/chat-gateway/internal/apperr"
	"aichat.dev/chat-gateway/internal/client"
	"aichat.dev/chat-gateway/internal/logger"
	"aichat.dev/chat-gateway/internal/session"
	"aichat.dev/chat-gateway/internal/store"
)

const helpText = `Commands:
  /register <name> <email> <password>   create an account and sign in
  /login <email> <password>             sign in
  /logout                               sign out
  /new                                  start a new chat
  /clear                                reset the current chat
  /chats                                list chats
  /select <n>                           switch to chat n
  /mode <general|coding|study|cv|translation>
  /provider <groq|gemini|deepseek|huggingface>
  /attach <path>                        attach an image to the next message
  /image <prompt>                       generate an image
  /weather <city>                       current weather
  /help                                 show this help
  /quit                                 exit
Anything else is sent as a chat message.`

type app struct {
	api   *client.Client
	state *session.Store
	out   io.Writer
}

var (
	serverURL string
	dataPath  string
	logLevel  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Terminal client for the chat gateway",
	Long: `chat is an interactive terminal client for the chat gateway.

Chats and the signed-in session are kept in a local SQLite file and
restored on the next start. Type /help inside the prompt for commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := logger.New(logLevel, "console")
		return err
	},
	RunE: runREPL,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api := client.New(serverURL)
		defer api.Close()
		if err := api.Health(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var weatherCmd = &cobra.Command{
	Use:   "weather <city>",
	Short: "Print the current weather for a city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api := client.New(serverURL)
		defer api.Close()
		a := &app{api: api, out: cmd.OutOrStdout()}
		return a.weather(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(weatherCmd)

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Chat gateway base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	rootCmd.Flags().StringVar(&dataPath, "data", "chat_client.db", "Local SQLite file for chats and session")
}

func runREPL(cmd *cobra.Command, args []string) error {
	db, err := store.NewSQLiteStore(dataPath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer db.Close()

	api := client.New(serverURL)
	defer api.Close()

	a := &app{api: api, state: session.NewStore(db), out: cmd.OutOrStdout()}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ok, err := a.state.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not restore session")
	} else if ok {
		a.verifySession(ctx)
	}

	fmt.Fprintln(a.out, "Type /help for commands.")
	a.printActive()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if quit := a.handle(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// verifySession drops a remembered session whose token the server no longer
// accepts.
func (a *app) verifySession(ctx context.Context) {
	st := a.state.State()
	if _, err := a.api.Me(ctx, st.Token); err != nil {
		if apperr.Is(err, apperr.KindAuth) {
			a.expireSession(ctx)
			return
		}
		log.Warn().Err(err).Msg("Could not verify session")
	}
	fmt.Fprintf(a.out, "Welcome back, %s.\n", st.User.Name)
}

// expireSession signs out after the server rejected the token.
func (a *app) expireSession(ctx context.Context) {
	if err := a.state.Logout(ctx); err != nil {
		a.printError(err)
		return
	}
	fmt.Fprintln(a.out, "Session expired, please /login again.")
}

func (a *app) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		a.sendChat(ctx, line)
		return false
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	var err error
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(a.out, helpText)
	case "/register":
		if len(args) < 3 {
			fmt.Fprintln(a.out, "usage: /register <name> <email> <password>")
			return false
		}
		err = a.register(ctx, strings.Join(args[:len(args)-2], " "), args[len(args)-2], args[len(args)-1])
	case "/login":
		if len(args) != 2 {
			fmt.Fprintln(a.out, "usage: /login <email> <password>")
			return false
		}
		err = a.login(ctx, args[0], args[1])
	case "/logout":
		err = a.state.Logout(ctx)
		if err == nil {
			fmt.Fprintln(a.out, "Signed out.")
		}
	case "/new":
		_, err = a.state.NewChat(ctx)
		if err == nil {
			a.printActive()
		}
	case "/clear":
		err = a.state.ClearCurrentChat(ctx)
		if err == nil {
			a.printActive()
		}
	case "/chats":
		a.listChats()
	case "/select":
		err = a.selectChat(rest)
	case "/mode":
		a.state.SetMode(strings.ToLower(rest))
		fmt.Fprintf(a.out, "Mode: %s\n", a.state.State().Mode)
	case "/provider":
		a.state.SetProvider(strings.ToLower(rest))
		fmt.Fprintf(a.out, "Provider: %s\n", a.state.State().Provider)
	case "/attach":
		err = a.attach(rest)
	case "/image":
		a.generateImage(ctx, rest)
	case "/weather":
		err = a.weather(ctx, rest)
	default:
		fmt.Fprintf(a.out, "Unknown command %s, try /help\n", cmd)
	}

	if err != nil {
		a.printError(err)
	}
	return false
}

func (a *app) printError(err error) {
	switch {
	case errors.Is(err, session.ErrNoUser):
		fmt.Fprintln(a.out, "Please /login or /register first.")
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(a.out, "Still waiting for the previous reply.")
	case apperr.KindOf(err) != apperr.KindInternal:
		fmt.Fprintf(a.out, "Error: %s\n", apperr.PublicMessage(err))
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}

func (a *app) register(ctx context.Context, name, email, password string) error {
	res, err := a.api.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	return a.signIn(ctx, res)
}

func (a *app) login(ctx context.Context, email, password string) error {
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return a.signIn(ctx, res)
}

func (a *app) signIn(ctx context.Context, res *client.AuthResponse) error {
	if err := a.state.Login(ctx, res.User, res.Token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s.\n", res.User.Name)
	a.printActive()
	return nil
}

func (a *app) sendChat(ctx context.Context, text string) {
	if err := a.state.BeginRequest(); err != nil {
		a.printError(err)
		return
	}
	defer a.state.EndRequest()

	if _, err := a.state.SendUserMessage(ctx, text); err != nil {
		a.printError(err)
		return
	}

	st := a.state.State()
	res, err := a.api.Chat(ctx, st.Token, client.ChatRequest{
		Provider: st.Provider,
		Mode:     st.Mode,
		Messages: session.Conversation(st),
	})
	if err != nil {
		log.Debug().Err(err).Msg("Chat request failed")
		if apperr.Is(err, apperr.KindAuth) {
			a.expireSession(ctx)
			return
		}
		a.receiveError(ctx, "Error contacting server")
		return
	}
	if err := a.state.ReceiveBotMessage(ctx, res.Reply, res.Provider, ""); err != nil {
		a.printError(err)
		return
	}
	a.printLast()
}

func (a *app) generateImage(ctx context.Context, prompt string) {
	if prompt == "" {
		fmt.Fprintln(a.out, "usage: /image <prompt>")
		return
	}
	if err := a.state.BeginRequest(); err != nil {
		a.printError(err)
		return
	}
	defer a.state.EndRequest()

	if _, err := a.state.SendUserMessage(ctx, prompt); err != nil {
		a.printError(err)
		return
	}

	img, err := a.api.GenerateImage(ctx, a.state.State().Token, prompt)
	if err != nil {
		log.Debug().Err(err).Msg("Image request failed")
		if apperr.Is(err, apperr.KindAuth) {
			a.expireSession(ctx)
			return
		}
		a.receiveError(ctx, "Error contacting image server")
		return
	}
	if err := a.state.ReceiveBotMessage(ctx, "Here is your image", "", img); err != nil {
		a.printError(err)
		return
	}
	a.printLast()
}

func (a *app) weather(ctx context.Context, city string) error {
	if city == "" {
		return apperr.Validation("usage: /weather <city>")
	}
	w, err := a.api.Weather(ctx, city)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s, %s: %.1f°C (feels like %.1f°C), %s, humidity %d%%\n",
		w.City, w.Country, w.Temp, w.FeelsLike, w.Description, w.Humidity)
	return nil
}

func (a *app) receiveError(ctx context.Context, text string) {
	if err := a.state.ReceiveError(ctx, text); err != nil {
		a.printError(err)
		return
	}
	a.printLast()
}

func (a *app) attach(path string) error {
	if path == "" {
		a.state.SetAttachment(nil)
		fmt.Fprintln(a.out, "Attachment removed.")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(mimeType, "image/") {
		return apperr.Validation("Only image files can be attached")
	}
	a.state.SetAttachment(&session.Attachment{
		Name:    filepath.Base(path),
		DataURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
	fmt.Fprintf(a.out, "Attached %s to the next message.\n", filepath.Base(path))
	return nil
}

func (a *app) selectChat(arg string) error {
	st := a.state.State()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(st.Chats) {
		return apperr.Validation("Choose a chat number from /chats")
	}
	if err := a.state.SelectChat(st.Chats[n-1].ID); err != nil {
		return err
	}
	a.printActive()
	return nil
}

func (a *app) listChats() {
	st := a.state.State()
	if st.User == nil {
		a.printError(session.ErrNoUser)
		return
	}
	for i, c := range st.Chats {
		marker := " "
		if c.ID == st.ActiveID {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %d. %s (%s)\n", marker, i+1, c.Title, c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func (a *app) printActive() {
	chat, ok := session.ActiveChat(a.state.State())
	if !ok {
		return
	}
	fmt.Fprintf(a.out, "== %s ==\n", chat.Title)
	for _, m := range chat.Messages {
		a.printMessage(m)
	}
}

func (a *app) printLast() {
	chat, ok := session.ActiveChat(a.state.State())
	if !ok || len(chat.Messages) == 0 {
		return
	}
	a.printMessage(chat.Messages[len(chat.Messages)-1])
}

func (a *app) printMessage(m session.Message) {
	who := "you"
	if m.Sender == session.SenderBot {
		who = "bot"
		if m.Provider != "" {
			who += " (" + m.Provider + ")"
		}
	}
	if m.Text != "" {
		fmt.Fprintf(a.out, "%s: %s\n", who, m.Text)
	}
	if m.ImageURL != "" {
		fmt.Fprintf(a.out, "%s: [image, %d bytes as data URI]\n", who, len(m.ImageURL))
	}
}

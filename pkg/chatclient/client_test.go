package chatclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/chatclient"
	"github.com/papercomputeco/rovo/pkg/chatstore"
	"github.com/papercomputeco/rovo/pkg/chatstream"
	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/relay"
)

type staticToken struct{}

func (staticToken) Sign(context.Context) (string, error) { return "test-token", nil }

// fakeGateway stands in for the AI gateway behind the relay. Streaming
// calls get deltas, non-streaming calls get suggestionText as the answer.
type fakeGateway struct {
	mu             sync.Mutex
	deltas         []string
	suggestionText string
	hold           chan struct{}
	chatBodies     []map[string]any
	suggestCalls   int
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	g.mu.Lock()
	if body["stream"] != true {
		g.suggestCalls++
		text := g.suggestionText
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
		})
		return
	}
	g.chatBodies = append(g.chatBodies, body)
	deltas, hold := g.deltas, g.hold
	g.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	for i, d := range deltas {
		chunk, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": d}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
		if i == 0 && hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (g *fakeGateway) calls() (chats []map[string]any, suggests int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.chatBodies...), g.suggestCalls
}

// startRelay serves a relay in front of upstreamURL on a loopback listener.
func startRelay(upstreamURL string) string {
	r := relay.New(relay.Config{UpstreamURL: upstreamURL, Model: "gpt-4.1"}, zap.NewNop(),
		relay.WithTokenSource(staticToken{}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	go r.Serve(ln)

	DeferCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

var _ = Describe("Client", func() {
	var (
		gateway *fakeGateway
		store   *chatstore.Store
		client  *chatclient.Client
	)

	BeforeEach(func() {
		gateway = &fakeGateway{
			deltas:         []string{"Hi", " there", "!"},
			suggestionText: `["What else?","Show my sprint","Who is on call?"]`,
		}
		upstream := httptest.NewServer(gateway)
		DeferCleanup(upstream.Close)

		store = chatstore.New()
		client = chatclient.New(startRelay(upstream.URL), store, zap.NewNop())
	})

	It("streams a turn end to end", func() {
		id, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "hello"})
		Expect(err).NotTo(HaveOccurred())

		msgs := store.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Type).To(Equal(chatstore.TypeUser))
		Expect(msgs[0].Content).To(Equal("hello"))

		msg, _ := store.Message(id)
		Expect(msg.Content).To(Equal("Hi there!"))
		Expect(msg.IsStreaming).To(BeFalse())
		Expect(msg.Widget).To(BeNil())
	})

	It("attaches suggestions after the turn completes", func() {
		id, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "hello"})
		Expect(err).NotTo(HaveOccurred())
		client.Wait()

		msg, _ := store.Message(id)
		Expect(msg.SuggestedQuestions).To(Equal([]string{"What else?", "Show my sprint", "Who is on call?"}))
		Expect(msg.Content).To(Equal("Hi there!"))
	})

	It("leaves content alone when suggestions are unusable", func() {
		gateway.suggestionText = "no idea"

		id, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "hello"})
		Expect(err).NotTo(HaveOccurred())
		client.Wait()

		msg, _ := store.Message(id)
		Expect(msg.SuggestedQuestions).To(BeEmpty())
		Expect(msg.Content).To(Equal("Hi there!"))
	})

	It("attaches a widget and keeps its JSON out of the content", func() {
		gateway.deltas = []string{"Your tasks: WIDGET_", `DATA:{"type":"work-items","data":{"items":[{"key":"P-1"}]}}`}

		id, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "tasks"})
		Expect(err).NotTo(HaveOccurred())

		msg, _ := store.Message(id)
		Expect(msg.Content).To(Equal("Your tasks: "))
		Expect(msg.Widget).NotTo(BeNil())
		Expect(msg.Widget.Type).To(Equal("work-items"))
	})

	It("sends prior finished turns as history", func() {
		_, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "first"})
		Expect(err).NotTo(HaveOccurred())
		_, err = client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "second"})
		Expect(err).NotTo(HaveOccurred())

		chats, _ := gateway.calls()
		Expect(chats).To(HaveLen(2))
		messages := chats[1]["messages"].([]any)
		// system, first, its answer, second
		Expect(messages).To(HaveLen(4))
		Expect(messages[1].(map[string]any)["content"]).To(Equal("first"))
		Expect(messages[2].(map[string]any)["content"]).To(Equal("Hi there!"))
	})

	It("rejects an empty message without calling the relay", func() {
		_, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "  "})

		Expect(err).To(MatchError(llm.ErrMessageRequired))
		Expect(store.Messages()).To(BeEmpty())
	})

	It("turns a relay error into an error message", func() {
		store = chatstore.New()
		client = chatclient.New(startRelay(""), store, zap.NewNop())

		id, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "hello"})

		var statusErr *chatclient.StatusError
		Expect(err).To(BeAssignableToTypeOf(statusErr))
		Expect(err.(*chatclient.StatusError).Code).To(Equal(http.StatusInternalServerError))
		Expect(err.(*chatclient.StatusError).Message).To(Equal("Server configuration error"))

		msg, _ := store.Message(id)
		Expect(msg.Content).To(Equal(chatstream.ErrorText))
		Expect(msg.Failed).To(BeTrue())
		Expect(msg.IsStreaming).To(BeFalse())
	})

	Context("while a turn is in flight", func() {
		var (
			errs chan error
			ids  chan string
		)

		BeforeEach(func() {
			gateway.hold = make(chan struct{})
			errs = make(chan error, 1)
			ids = make(chan string, 1)

			go func() {
				defer GinkgoRecover()
				id, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "slow"})
				ids <- id
				errs <- err
			}()

			Eventually(func() string {
				msgs := store.Messages()
				if len(msgs) < 2 {
					return ""
				}
				return msgs[1].Content
			}, 2*time.Second).Should(Equal("Hi"))
		})

		It("refuses a second turn", func() {
			Expect(client.InFlight()).To(BeTrue())

			_, err := client.SendTurn(context.Background(), chatclient.TurnRequest{Message: "again"})
			Expect(err).To(MatchError(chatclient.ErrTurnInFlight))

			close(gateway.hold)
			Eventually(errs, 2*time.Second).Should(Receive(BeNil()))
			Expect(client.InFlight()).To(BeFalse())
		})

		It("keeps partial content when cancelled and skips suggestions", func() {
			client.Cancel()

			Eventually(errs, 2*time.Second).Should(Receive(MatchError(context.Canceled)))
			id := <-ids
			client.Wait()

			msg, _ := store.Message(id)
			Expect(msg.Content).To(Equal("Hi"))
			Expect(msg.IsStreaming).To(BeFalse())
			Expect(msg.Failed).To(BeFalse())
			Expect(msg.SuggestedQuestions).To(BeEmpty())

			_, suggests := gateway.calls()
			Expect(suggests).To(BeZero())
			close(gateway.hold)
		})
	})

	Describe("Suggestions", func() {
		It("returns the relay's questions", func() {
			questions, err := client.Suggestions(context.Background(), llm.SuggestionsRequest{
				Message:           "hello",
				AssistantResponse: "Hi there!",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(questions).To(HaveLen(3))
		})

		It("reports a rejected request", func() {
			_, err := client.Suggestions(context.Background(), llm.SuggestionsRequest{Message: "hello"})

			Expect(err).To(HaveOccurred())
			Expect(err.(*chatclient.StatusError).Code).To(Equal(http.StatusBadRequest))
		})
	})
})

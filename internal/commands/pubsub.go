package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/pubsub"
)

// NewPubSubCmd creates the pubsub command.
//
// LocalPubSub never crosses a process boundary, so there is no meaningful
// `publish` from one CLI invocation that a `listen` in another process
// could observe. `demo` subscribes and publishes within a single process
// to exercise the wiring end to end; it's the CLI-level analogue of the
// package's own tests.
func NewPubSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pubsub",
		Short: "Exercise the local publish/subscribe layer",
	}

	cmd.AddCommand(newPubSubDemoCmd())

	return cmd
}

func newPubSubDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Subscribe to a topic, publish one message, and print what was received",
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			content, _ := cmd.Flags().GetString("content")
			source, _ := cmd.Flags().GetString("source")

			if content == "" {
				content = "{}"
			}
			var payload any
			if err := json.Unmarshal([]byte(content), &payload); err != nil {
				return cmdErr(err)
			}

			ps := pubsub.NewLocalPubSub()
			received := make(chan pubsub.Message, 1)

			sub, err := ps.Subscribe(topic, func(msg pubsub.Message) error {
				received <- msg
				return nil
			})
			if err != nil {
				return cmdErr(err)
			}
			defer sub.Unsubscribe()

			if err := ps.Publish(topic, payload, source); err != nil {
				return cmdErr(err)
			}

			type resp struct {
				Topic    string          `json:"topic"`
				Received bool            `json:"received"`
				Message  *pubsub.Message `json:"message,omitempty"`
			}

			select {
			case msg := <-received:
				return output.PrintSuccess(resp{Topic: topic, Received: true, Message: &msg})
			case <-time.After(time.Second):
				return output.PrintSuccess(resp{Topic: topic, Received: false})
			}
		},
	}

	cmd.Flags().StringP("topic", "t", "", "Topic name (required)")
	cmd.Flags().StringP("content", "c", "{}", "Message content as JSON")
	cmd.Flags().StringP("source", "s", "cli", "Message source identifier")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

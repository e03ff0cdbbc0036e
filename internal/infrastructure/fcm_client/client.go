package fcm_client

import (
	"context"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/notifier"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

type Options struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON []byte
}

type Option func(*Options)

func WithProjectID(id string) Option {
	return func(o *Options) { o.ProjectID = id }
}

func WithCredentialsFile(path string) Option {
	return func(o *Options) { o.CredentialsFile = path }
}

func WithCredentialsJSON(b []byte) Option {
	return func(o *Options) { o.CredentialsJSON = b }
}

// Gateway sends notifications through Firebase Cloud Messaging.
type Gateway struct {
	client *messaging.Client
}

var (
	once    sync.Once
	gateway *Gateway
)

// NewFCMClient initializes the Firebase app and messaging client once.
func NewFCMClient(ctx context.Context, optFns ...Option) error {
	var initErr error
	once.Do(func() {
		conf := Options{}
		for _, fn := range optFns {
			if fn != nil {
				fn(&conf)
			}
		}

		var clientOpts []option.ClientOption
		switch {
		case len(conf.CredentialsJSON) > 0:
			clientOpts = append(clientOpts, option.WithCredentialsJSON(conf.CredentialsJSON))
		case conf.CredentialsFile != "":
			clientOpts = append(clientOpts, option.WithCredentialsFile(conf.CredentialsFile))
		default:
			initErr = errors.New("no firebase credentials configured")
			return
		}

		var appCfg *firebase.Config
		if conf.ProjectID != "" {
			appCfg = &firebase.Config{ProjectID: conf.ProjectID}
		}

		app, err := firebase.NewApp(ctx, appCfg, clientOpts...)
		if err != nil {
			initErr = errors.Wrap(err, "failed to initialize firebase app")
			return
		}
		c, err := app.Messaging(ctx)
		if err != nil {
			initErr = errors.Wrap(err, "failed to initialize firebase messaging client")
			return
		}
		gateway = &Gateway{client: c}
	})
	return initErr
}

func Client() *Gateway {
	if gateway == nil {
		panic("fcm client not initialized; call NewFCMClient first")
	}
	return gateway
}

func (g *Gateway) Send(ctx context.Context, token string, n models.Notification) error {
	if token == "" {
		return &notifier.PermanentError{Reason: "missing-token"}
	}
	_, err := g.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
	})
	return classify(err)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case messaging.IsUnregistered(err):
		return errors.Wrap(notifier.ErrTokenUnregistered, err.Error())
	case messaging.IsInvalidArgument(err):
		return &notifier.PermanentError{Reason: "invalid-argument", Cause: err}
	case messaging.IsSenderIDMismatch(err):
		return &notifier.PermanentError{Reason: "sender-id-mismatch", Cause: err}
	case messaging.IsThirdPartyAuthError(err):
		return &notifier.PermanentError{Reason: "third-party-auth-error", Cause: err}
	default:
		return errors.Wrap(err, "fcm send failed")
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/locks"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

// IdempotencyRecord is the stored outcome of one keyed command. Failures are
// kept by kind so a replay returns the same classification.
type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	ErrorKind  string
	Error      string
	Details    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored outcome for a repeated key. Requests sharing
// a key are serialised through keys. Transient failures are not stored so a
// retry runs the command again.
func Idempotency(store IdempotencyStore, codec ResultCodec, keys *locks.KeyedMutex) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if keys == nil {
		keys = locks.NewKeyedMutex()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			unlock, err := keys.Lock(ctx, key)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindConcurrencyExhausted, "request with the same idempotency key is still running")
			}
			defer unlock()

			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, apperrors.Persistence(err)
			}
			if found {
				return replay(rec, idCmd, codec)
			}

			result, err := nextFn(ctx, cmd)
			record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
			if err != nil {
				kind := apperrors.KindOf(err)
				if kind.Transient() {
					return nil, err
				}
				record.ErrorKind = string(kind)
				record.Error = err.Error()
				if appErr, ok := apperrors.As(err); ok {
					record.Error = appErr.Message
					if len(appErr.Details) > 0 {
						record.Details, _ = json.Marshal(appErr.Details)
					}
				}
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, apperrors.Internal(encErr)
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, apperrors.Persistence(saveErr)
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.ErrorKind != "" {
		appErr := apperrors.New(apperrors.Kind(rec.ErrorKind), rec.Error)
		if len(rec.Details) > 0 {
			var details map[string]any
			if json.Unmarshal(rec.Details, &details) == nil {
				appErr.Details = details
			}
		}
		return nil, appErr
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return normalizePrototype(proto), nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, apperrors.Internal(err)
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}

package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tradehub/pkg/errors"
	"tradehub/pkg/logger"
)

// storeError maps a Firestore failure onto the application error codes.
// Errors already carrying an application code pass through untouched.
func storeError(err error, resource, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.AlreadyExists:
		return errors.Conflict(resource + " already exists")
	case codes.Aborted:
		return errors.Conflict("concurrent update on " + resource + ", retry")
	}
	logger.Error("Firestore %s on %s failed: %v", op, resource, err)
	return errors.Internal("Failed to "+op+" "+resource, err)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// collect drains a document iterator into typed values.
func collect[T any](iter *firestore.DocumentIterator, resource string) ([]*T, error) {
	defer iter.Stop()

	var out []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeError(err, resource, "iterate")
		}
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, errors.Internal("Failed to parse "+resource+" data", err)
		}
		out = append(out, &v)
	}
	return out, nil
}

func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef, resource string) (*T, error) {
	doc, err := ref.Get(ctx)
	if err != nil {
		return nil, storeError(err, resource, "get")
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, errors.Internal("Failed to parse "+resource+" data", err)
	}
	return &v, nil
}

func getInTx[T any](tx *firestore.Transaction, ref *firestore.DocumentRef, resource string) (*T, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		return nil, storeError(err, resource, "get")
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, errors.Internal("Failed to parse "+resource+" data", err)
	}
	return &v, nil
}

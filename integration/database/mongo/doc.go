// Package mongo connects to MongoDB with retries and exposes a health check.
//
// New applies Config to the v2 driver, retries at a fixed interval until a ping
// succeeds and returns the client. Embedded documents decode as bson.M.
//
//	client, err := mongo.New(ctx, mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(ctx)
//
// Settings are read from MONGODB_* variables; see Config for names and
// defaults. Failures wrap ErrEmptyConnectionURL, ErrFailedToConnectToMongo or
// ErrHealthcheckFailed.
package mongo

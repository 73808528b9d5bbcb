// Package sisapi defines the public surface of the school-management
// API client: the Client interface and its per-resource clients, the
// Record type, the field-aware RecordCache, the key store, structured
// logging, and the error taxonomy.
//
// Create clients with github.com/quadra-edu/sisapi/pkg/sisclient:
//
//	client, err := sisclient.New(&sisapi.Config{
//		AccessKey: "demoschool.your-api-key",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	students, err := client.Students().List(ctx, nil, nil)
//
// Resource accessors consult their RecordCache before touching the
// network. A fetch happens only when the cache is disabled for the
// call, a requested field has never been cached, or the requested
// id/filter has no cached match. Requests are tracked per upstream
// server; once a server's quota is exhausted every further call to it
// fails fast with a QuotaExceededError until the process restarts.
package sisapi

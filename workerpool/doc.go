// Package workerpool runs independent tasks on a fixed set of workers.
//
// Each worker owns a handler created by a factory, a context and a status.
// Tasks submitted with Run return a Future immediately; a single dispatcher
// assigns queued tasks round-robin to workers that are free, meaning not
// blocked and below their task limit. A worker may Block itself while it
// runs something heavy and Free itself later.
//
// When a handler panics or a worker calls Fail, the worker is removed and
// every task it was running fails with a *WorkerFault. A fault on an idle
// worker is reported through Config.OnError instead. In both cases a
// replacement worker is spawned, retrying with backoff if the factory fails.
//
//	p, err := workerpool.New(workerpool.Config{
//	    Workers: 4,
//	    Handler: workerpool.HandlerFunc(func(ctx context.Context, w *workerpool.Worker, task any) (any, error) {
//	        return decode(task.(string))
//	    }),
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	v, err := workerpool.Await[*Archive](ctx, p.Run(path))
package workerpool

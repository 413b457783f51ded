// Package ratelimit paces the batch driver between items.
//
// A Limiter blocks for a fixed pause each time Wait is called and returns
// early with the context error when the run is cancelled:
//
//	limiter := ratelimit.NewFixedDelay(5 * time.Second)
//	for i, item := range pending {
//	    process(item)
//	    if i < len(pending)-1 {
//	        if err := limiter.Wait(ctx); err != nil {
//	            return err
//	        }
//	    }
//	}
package ratelimit

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command classmap maps the class structure of a Python project.
//
// It parses every .py file under a project root, records classes, their
// bases, attributes, and the calls each method makes, and derives
// inheritance, call, and dependency graphs from the result.
//
// Usage:
//
//	classmap analyze ./myproject            # writes ../myproject_analysis_results.json
//	classmap analyze ./myproject out.json   # writes ../out.json
//	classmap classes myproject_analysis_results.json
//	classmap graph myproject_analysis_results.json --kind dep --center Service --hops 2
//	classmap serve --data myproject_analysis_results.json --watch
//	classmap snapshot list --db ~/.classmap/snapshots
//
// Example requests against serve:
//
//	# Health check
//	curl http://localhost:8080/v1/classmap/health
//
//	# Inheritance neighborhood of a class
//	curl 'http://localhost:8080/v1/classmap/graph?kind=inherit&center=Base&expand=true&hops=2'
//
//	# Analyze a directory on the server host
//	curl -X POST http://localhost:8080/v1/classmap/analyze \
//	  -H "Content-Type: application/json" \
//	  -d '{"project_root": "/path/to/project"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

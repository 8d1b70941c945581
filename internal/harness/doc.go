// Package harness runs build scenarios against the real engine.
//
// A scenario describes a throwaway site: its input files, its CUE
// definition, the build settings, and what the build must produce.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: blog
//	description: "Posts render, drafts are dropped, the index lists posts"
//	config:
//	  jobs: 2
//	  fail_fast: false
//	files:
//	  posts/a.md: |
//	    ---
//	    title: Alpha
//	    ---
//	    Hello.
//	definition: |
//	  rule: posts: {
//	    match: "posts/*.md"
//	    steps: ["read", "front_matter", "markdown", {route: "html"}, "write"]
//	  }
//	assertions:
//	  - type: build_ok
//	    ok: true
//	  - type: output_contains
//	    path: posts/a.html
//	    contains: "<p>Hello.</p>"
//	  - type: final_state
//	    table: rule_results
//	    where: { name: posts }
//	    expect: { state: published, committed: 1 }
//
// A scenario that expects the definition or graph to be rejected sets
// expect_error to a substring of the error instead of listing outputs.
//
// # Assertion Types
//
//   - build_ok: the build succeeded (ok: true) or failed (ok: false)
//   - trace_contains: an event of the given type for rule (and source)
//   - trace_order: events, written "<type> <rule>", appear in this order
//   - trace_count: the number of events of a type, optionally per rule
//   - final_state: a row of the build manifest matches expected values
//   - output_exists / output_absent: a file under the output root
//   - output_contains: a file's content contains a substring
//   - failure: a failure was reported for rule (and source, step)
//   - collision: an output collision was reported at path
//   - warning_contains: some warning contains a substring
//
// # Deterministic Testing
//
// Every scenario runs in a fresh temporary directory, with a fixed build
// ID, a fresh logical clock and an in-memory manifest, so the snapshot of
// a scenario is identical across runs and can be compared to a golden file.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/blog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this example
	registry := NewRegistry(prometheus.NewRegistry())

	registry.StepsStarted.WithLabelValues("deploy").Add(3)
	registry.StepsCompleted.WithLabelValues("deploy").Add(2)
	registry.StepsSkipped.WithLabelValues("deploy").Inc()

	fmt.Printf("started: %v\n", testutil.ToFloat64(registry.StepsStarted.WithLabelValues("deploy")))
	fmt.Printf("settled: %v\n",
		testutil.ToFloat64(registry.StepsCompleted.WithLabelValues("deploy"))+
			testutil.ToFloat64(registry.StepsSkipped.WithLabelValues("deploy")))

	// Output:
	// started: 3
	// settled: 3
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)
	fmt.Printf("Default namespace: %s\n", defaultConfig.Namespace)
	fmt.Printf("Default registry shared: %v\n", FromConfig(defaultConfig) == DefaultRegistry)

	customConfig := Config{
		Enabled:   true,
		Registry:  prometheus.NewRegistry(),
		Namespace: "myapp",
	}
	fmt.Printf("Custom registry shared: %v\n", FromConfig(customConfig) == DefaultRegistry)

	// Output:
	// Default enabled: true
	// Default namespace: stepflow
	// Default registry shared: true
	// Custom registry shared: false
}

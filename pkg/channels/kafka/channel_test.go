package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		want    []string
		wantErr bool
	}{
		{name: "single broker", env: "localhost:9092", want: []string{"localhost:9092"}},
		{name: "trims and drops blanks", env: "kafka-1:9092, kafka-2:9092,", want: []string{"kafka-1:9092", "kafka-2:9092"}},
		{name: "unset", env: "", wantErr: true},
		{name: "only separators", env: " , ,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KAFKA_BROKERS", tt.env)

			brokers, err := Brokers()
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, brokers)
		})
	}
}

func TestCreateChannelRequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, _, err := CreateChannel(watermill.NopLogger{}, "flowmatic-runner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

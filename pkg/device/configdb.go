package device

import (
	"context"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

// configDBIndex is SONiC's CONFIG_DB Redis database number.
const configDBIndex = 4

// ConfigDBClient reads the VXLAN tables of a SONiC CONFIG_DB.
type ConfigDBClient struct {
	client *redis.Client
}

// NewConfigDBClient creates a CONFIG_DB client for the Redis at addr.
func NewConfigDBClient(addr string) *ConfigDBClient {
	return &ConfigDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   configDBIndex,
		}),
	}
}

// Connect tests the connection
func (c *ConfigDBClient) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *ConfigDBClient) Close() error {
	return c.client.Close()
}

// Table returns every entry of a CONFIG_DB table keyed by the part of the
// Redis key after "TABLE|".
func (c *ConfigDBClient) Table(ctx context.Context, table string) (map[string]map[string]string, error) {
	keys, err := scanKeys(ctx, c.client, table+"|*", 100)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]map[string]string, len(keys))
	for _, key := range keys {
		vals, err := c.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		entries[strings.TrimPrefix(key, table+"|")] = vals
	}
	return entries, nil
}

// ConfiguredVNIs reads VXLAN_TUNNEL_MAP and VRF and returns VNI -> VLAN
// or VRF name.
func (c *ConfigDBClient) ConfiguredVNIs(ctx context.Context) (map[string]string, error) {
	maps, err := c.Table(ctx, "VXLAN_TUNNEL_MAP")
	if err != nil {
		return nil, err
	}
	vrfs, err := c.Table(ctx, "VRF")
	if err != nil {
		return nil, err
	}
	return vniIndex(maps, vrfs), nil
}

// vniIndex builds VNI -> VLAN/VRF from VXLAN_TUNNEL_MAP entries
// ("vtep1|map_10100_Vlan100": {vni, vlan} or {vni, vrf}) and VRF entries
// ("Vrf_CUST1": {vni}). Tunnel map entries win over VRF entries.
func vniIndex(tunnelMaps, vrfs map[string]map[string]string) map[string]string {
	out := make(map[string]string)

	for _, name := range sortedEntryKeys(vrfs) {
		if vni := vrfs[name]["vni"]; vni != "" && vni != "0" {
			out[vni] = name
		}
	}
	for _, key := range sortedEntryKeys(tunnelMaps) {
		vals := tunnelMaps[key]
		vni := vals["vni"]
		if vni == "" {
			continue
		}
		switch {
		case vals["vlan"] != "":
			out[vni] = vals["vlan"]
		case vals["vrf"] != "":
			out[vni] = vals["vrf"]
		default:
			out[vni] = key
		}
	}
	return out
}

func sortedEntryKeys(m map[string]map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scanKeys collects keys matching pattern with cursor-based SCAN.
func scanKeys(ctx context.Context, client *redis.Client, pattern string, countHint int64) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, nextCursor, err := client.Scan(ctx, cursor, pattern, countHint).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

const ProxyTable = "proxies"

// Proxy is one stored proxy record. The connection string is always the
// canonical formatted form (scheme://[login:password@]host:port).
type Proxy struct {
	Id         int    `json:"id"`
	Proxy      string `json:"proxy"`
	CreateTime int64  `json:"create_time"`
}

func (d *Database) proxiesInit() {
	d.db.CreateIndex("proxies_id", ProxyTable+":*", buntdb.IndexJSON("id"))
}

func (d *Database) AddProxy(proxy_str string) (*Proxy, error) {
	if _, err := d.proxiesGetByString(proxy_str); err == nil {
		return nil, fmt.Errorf("proxy already exists: %s", proxy_str)
	}

	id, _ := d.getNextId(ProxyTable)

	p := &Proxy{
		Id:         id,
		Proxy:      proxy_str,
		CreateTime: time.Now().UTC().Unix(),
	}

	jf, _ := json.Marshal(p)

	err := d.db.Update(func(tx *buntdb.Tx) error {
		tx.Set(d.genIndex(ProxyTable, id), string(jf), nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Database) ListProxies() ([]*Proxy, error) {
	proxies := []*Proxy{}
	err := d.db.View(func(tx *buntdb.Tx) error {
		tx.Ascend("proxies_id", func(key, val string) bool {
			p := &Proxy{}
			if err := json.Unmarshal([]byte(val), p); err == nil {
				proxies = append(proxies, p)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proxies, nil
}

func (d *Database) DeleteProxy(id int) error {
	err := d.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(d.genIndex(ProxyTable, id))
		return err
	})
	return err
}

func (d *Database) DeleteProxyByString(proxy_str string) error {
	p, err := d.proxiesGetByString(proxy_str)
	if err != nil {
		return err
	}
	return d.DeleteProxy(p.Id)
}

func (d *Database) GetProxy(id int) (*Proxy, error) {
	p := &Proxy{}
	err := d.db.View(func(tx *buntdb.Tx) error {
		found := false
		err := tx.AscendEqual("proxies_id", d.getPivot(map[string]int{"id": id}), func(key, val string) bool {
			json.Unmarshal([]byte(val), p)
			found = true
			return false
		})
		if !found {
			return fmt.Errorf("proxy ID not found: %d", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Database) proxiesGetByString(proxy_str string) (*Proxy, error) {
	p := &Proxy{}
	found := false
	err := d.db.View(func(tx *buntdb.Tx) error {
		tx.Ascend("proxies_id", func(key, val string) bool {
			cp := &Proxy{}
			if err := json.Unmarshal([]byte(val), cp); err == nil && cp.Proxy == proxy_str {
				*p = *cp
				found = true
				return false
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("proxy not found: %s", proxy_str)
	}
	return p, nil
}

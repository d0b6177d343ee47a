/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration of the limiter, the logger and the HTTP server
// from YAML/JSON files, readers and environment variables.
//
// Every configuration object implements the Config interface: it declares its defaults in SetProviderDefaults
// and reads (and validates) its values in Set. Objects that implement KeyPrefixProvider receive
// a DataProvider that resolves keys relative to their prefix.
package config

import "reflect"

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// dataProviderFor returns dp prefixed with the key prefix of cfg if it has one.
func dataProviderFor(cfg interface{}, dp DataProvider) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}

// CallSetProviderDefaultsForFields finds all initialized (non-nil) exported fields of the passed struct pointer
// that implement Config interface and calls SetProviderDefaults() method for each of them.
func CallSetProviderDefaultsForFields(obj interface{}, dp DataProvider) {
	for _, c := range configFields(obj) {
		c.SetProviderDefaults(dataProviderFor(c, dp))
	}
}

// CallSetForFields finds all initialized (non-nil) exported fields of the passed struct pointer
// that implement Config interface and calls Set() method for each of them.
func CallSetForFields(obj interface{}, dp DataProvider) error {
	for _, c := range configFields(obj) {
		if err := c.Set(dataProviderFor(c, dp)); err != nil {
			return err
		}
	}
	return nil
}

func configFields(obj interface{}) []Config {
	el := reflect.ValueOf(obj).Elem()
	var res []Config
	for i := 0; i < el.NumField(); i++ {
		if !el.Type().Field(i).IsExported() {
			continue
		}
		field := el.Field(i)
		if field.Kind() == reflect.Ptr && field.IsNil() {
			continue
		}
		if c, ok := field.Interface().(Config); ok {
			res = append(res, c)
		}
	}
	return res
}
